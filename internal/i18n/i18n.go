// Package i18n provides the message catalogs behind targeting.Localizer.
//
// Catalogs are built once at package init with golang.org/x/text/message
// and are read-only afterwards. Unknown keys render as the key itself, so
// a missing translation is visible but never fatal.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// messages holds the translations per language. English is the fallback.
var messages = map[language.Tag]map[string]string{
	language.English: {
		"common.input.placeholder":          "Please enter a value",
		"common.select.placeholder":         "Please select",
		"toggles.returntype.placeholder":    "Please enter a value for the return type",
		"common.user.text":                  "User",
		"targeting.status.text":             "Status",
		"common.variations.text":            "Variations",
		"common.rules.text":                 "Rules",
		"targeting.default.rule":            "Default rule",
		"common.disabled.return.type.text":  "Disabled return value",
		"targeting.publish.modal.comment":   "Comment",
		"targeting.publish.material.notice": "This change affects which variation users already exposed to this toggle receive.",
	},
	language.Chinese: {
		"common.input.placeholder":          "请输入",
		"common.select.placeholder":         "请选择",
		"toggles.returntype.placeholder":    "请输入返回值",
		"common.user.text":                  "用户",
		"targeting.status.text":             "状态",
		"common.variations.text":            "分组",
		"common.rules.text":                 "规则",
		"targeting.default.rule":            "默认规则",
		"common.disabled.return.type.text":  "禁用时返回",
		"targeting.publish.modal.comment":   "备注",
		"targeting.publish.material.notice": "此变更会影响已命中该开关的用户所获得的分组。",
	},
}

var (
	builder = catalog.NewBuilder(catalog.Fallback(language.English))
	matcher language.Matcher
)

func init() {
	tags := []language.Tag{language.English, language.Chinese}
	for _, tag := range tags {
		for key, text := range messages[tag] {
			if err := builder.SetString(tag, key, text); err != nil {
				panic(fmt.Sprintf("i18n: %s %s: %v", tag, key, err))
			}
		}
	}
	matcher = language.NewMatcher(tags)
}

// Localizer renders message keys for one language.
type Localizer struct {
	tag      language.Tag
	fallback bool
	printer  *message.Printer
}

// New returns a localizer for the best match of lang among the supported
// languages. An empty lang selects English.
func New(lang string) (*Localizer, error) {
	tag := language.English
	if lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", lang, err)
		}
		tag = parsed
	}

	matched, _, conf := matcher.Match(tag)
	base, _ := matched.Base()
	matched, _ = language.Compose(base)

	return &Localizer{
		tag:      matched,
		fallback: conf == language.No,
		printer:  message.NewPrinter(matched, message.Catalog(builder)),
	}, nil
}

// Language returns the tag the localizer renders for.
func (l *Localizer) Language() language.Tag {
	return l.tag
}

// Fallback reports whether the requested language has no catalog and
// English is used instead.
func (l *Localizer) Fallback() bool {
	return l.fallback
}

// Text implements targeting.Localizer.
func (l *Localizer) Text(key string) string {
	return l.printer.Sprintf(key)
}

// Supported lists the languages with a catalog.
func Supported() []string {
	return []string{language.English.String(), language.Chinese.String()}
}
