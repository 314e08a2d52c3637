package silentauth

// Message kinds, matching the identity provider's silent-login protocol tags.
const (
	KindSuccess             = "DISCORD_SILENT_LOGIN_SUCCESS"
	KindInteractionRequired = "DISCORD_SILENT_LOGIN_REQUIRED"
	KindFailed              = "DISCORD_SILENT_LOGIN_FAILED"
)

// Message is one provider-delivered silent-login result. State echoes the
// correlation id the attempt was opened with; messages with an unknown
// state are dropped.
type Message struct {
	Kind       string
	Credential string
	Error      string
	State      string
}

// Outcome is what an attempt reports back to the session provider.
type Outcome int

const (
	// OutcomeRecovered means a credential was persisted and the identity
	// call should be re-issued.
	OutcomeRecovered Outcome = iota
	// OutcomeInteractionRequired means the provider needs the user.
	OutcomeInteractionRequired
	// OutcomeFailed means the provider reported an error.
	OutcomeFailed
	// OutcomeTimeout means the provider stayed silent past the bound.
	// Cross-origin network failure is indistinguishable from this.
	OutcomeTimeout
)

// String renders the outcome for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeRecovered:
		return "recovered"
	case OutcomeInteractionRequired:
		return "interaction_required"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
