package domain

import "time"

// Settings keys for maintenance mode, stored under the "system" category.
const (
	SettingsCategorySystem = "system"

	SettingMaintenanceMode    = "maintenanceMode"
	SettingMaintenanceReason  = "maintenanceReason"
	SettingMaintenanceEndTime = "maintenanceEndTime"
)

// MaintenanceState is the site-wide maintenance flag plus display metadata.
// EndTime is informational only and never enforced.
type MaintenanceState struct {
	Enabled bool       `json:"enabled"`
	Reason  string     `json:"reason,omitempty"`
	EndTime *time.Time `json:"end_time,omitempty"`
}

// SettingUpdate is a single settings-row change delivered by the realtime feed.
type SettingUpdate struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}
