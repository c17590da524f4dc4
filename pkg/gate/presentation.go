package gate

// Outcome is what a viewer should be shown for the current page render.
type Outcome int

const (
	// OutcomeContent shows normal content.
	OutcomeContent Outcome = iota
	// OutcomeContentWithBanner shows normal content plus a dismissible
	// maintenance warning banner (admins browsing during maintenance).
	OutcomeContentWithBanner
	// OutcomeTakeover shows the maintenance takeover exclusively; normal
	// content is not rendered at all.
	OutcomeTakeover
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContent:
		return "content"
	case OutcomeContentWithBanner:
		return "content_with_banner"
	case OutcomeTakeover:
		return "takeover"
	default:
		return "unknown"
	}
}

// Decide resolves the maintenance decision table, in order: maintenance off
// shows content; an admin sees content behind a warning banner; a valid beta
// grant sees content with no banner; everyone else gets the takeover.
func Decide(maintenanceOn, isAdmin, hasGrant bool) Outcome {
	if !maintenanceOn {
		return OutcomeContent
	}
	if isAdmin {
		return OutcomeContentWithBanner
	}
	if hasGrant {
		return OutcomeContent
	}
	return OutcomeTakeover
}
