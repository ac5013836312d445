package app

// Option adjusts how one submission is processed.
type Option string

const (
	// OptionNone is the default full pipeline.
	OptionNone Option = "None"
	// OptionValidatePayload checks the payload and reports problems
	// without routing anything.
	OptionValidatePayload Option = "ValidatePayload"
	// OptionSkipSend tracks output reports but stages no delivery at all,
	// bypassing both timing and send.
	OptionSkipSend Option = "SkipSend"
	// OptionSkipInvalidItems tolerates per-item errors, routing the items
	// that survive instead of rejecting the submission.
	OptionSkipInvalidItems Option = "SkipInvalidItems"
	// OptionSendImmediately bypasses receiver timing policies.
	OptionSendImmediately Option = "SendImmediately"
)

// ParseOption maps a request parameter onto an option. Unknown values fall
// back to None.
func ParseOption(value string) Option {
	switch Option(value) {
	case OptionValidatePayload, OptionSkipSend, OptionSkipInvalidItems, OptionSendImmediately:
		return Option(value)
	default:
		return OptionNone
	}
}
