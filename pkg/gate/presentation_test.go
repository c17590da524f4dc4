package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_FullTable(t *testing.T) {
	tests := []struct {
		name          string
		maintenanceOn bool
		isAdmin       bool
		hasGrant      bool
		want          Outcome
	}{
		{name: "off/visitor", maintenanceOn: false, isAdmin: false, hasGrant: false, want: OutcomeContent},
		{name: "off/grant holder", maintenanceOn: false, isAdmin: false, hasGrant: true, want: OutcomeContent},
		{name: "off/admin", maintenanceOn: false, isAdmin: true, hasGrant: false, want: OutcomeContent},
		{name: "off/admin with grant", maintenanceOn: false, isAdmin: true, hasGrant: true, want: OutcomeContent},
		{name: "on/visitor", maintenanceOn: true, isAdmin: false, hasGrant: false, want: OutcomeTakeover},
		{name: "on/grant holder", maintenanceOn: true, isAdmin: false, hasGrant: true, want: OutcomeContent},
		{name: "on/admin", maintenanceOn: true, isAdmin: true, hasGrant: false, want: OutcomeContentWithBanner},
		{name: "on/admin with grant", maintenanceOn: true, isAdmin: true, hasGrant: true, want: OutcomeContentWithBanner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.maintenanceOn, tt.isAdmin, tt.hasGrant)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "content", OutcomeContent.String())
	assert.Equal(t, "content_with_banner", OutcomeContentWithBanner.String())
	assert.Equal(t, "takeover", OutcomeTakeover.String())
}
