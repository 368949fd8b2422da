package targeting

// Localizer resolves message keys to display text. Implementations live
// outside the engine (see internal/i18n); the engine treats text as opaque.
type Localizer interface {
	Text(key string) string
}

// KeyLocalizer returns every key unchanged. Used when no catalog is wired.
type KeyLocalizer struct{}

// Text implements Localizer.
func (KeyLocalizer) Text(key string) string { return key }

// Message keys used by the engine.
const (
	MsgInputRequired      = "common.input.placeholder"
	MsgReturnTypeRequired = "toggles.returntype.placeholder"
	MsgServeRequired      = "common.select.placeholder"

	MsgSectionStatus     = "targeting.status.text"
	MsgSectionVariations = "common.variations.text"
	MsgSectionRules      = "common.rules.text"
	MsgSectionDefault    = "targeting.default.rule"
	MsgSectionDisabled   = "common.disabled.return.type.text"

	MsgPublishNotice  = "targeting.publish.material.notice"
	MsgPublishComment = "targeting.publish.modal.comment"
)
