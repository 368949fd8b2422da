package i18n

import (
	"slices"
	"testing"

	"golang.org/x/text/language"

	"github.com/solatis/flagkeeper/internal/targeting"
)

var _ targeting.Localizer = (*Localizer)(nil)

func TestLocalizer_Text(t *testing.T) {
	tests := []struct {
		lang string
		key  string
		want string
	}{
		{"", targeting.SubjectPlaceholderKey, "User"},
		{"en", targeting.MsgInputRequired, "Please enter a value"},
		{"en-GB", targeting.MsgSectionRules, "Rules"},
		{"zh", targeting.SubjectPlaceholderKey, "用户"},
		{"zh-Hans-CN", targeting.MsgSectionDefault, "默认规则"},
		{"fr", targeting.MsgSectionStatus, "Status"},
		{"en", "no.such.key", "no.such.key"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.key, func(t *testing.T) {
			l, err := New(tt.lang)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.lang, err)
			}
			if got := l.Text(tt.key); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLocalizer_Fallback(t *testing.T) {
	tests := []struct {
		lang         string
		wantFallback bool
	}{
		{"", false},
		{"en-US", false},
		{"zh-Hans-CN", false},
		{"fr", true},
	}
	for _, tt := range tests {
		l, err := New(tt.lang)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.lang, err)
		}
		if got := l.Fallback(); got != tt.wantFallback {
			t.Errorf("New(%q).Fallback() = %v, want %v", tt.lang, got, tt.wantFallback)
		}
		if !slices.Contains(Supported(), l.Language().String()) {
			t.Errorf("New(%q).Language() = %v, not in %v", tt.lang, l.Language(), Supported())
		}
	}
}

func TestPublishMessages(t *testing.T) {
	zh, err := New("zh")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{targeting.MsgPublishNotice, targeting.MsgPublishComment} {
		if got := zh.Text(key); got == key || got == messages[language.English][key] {
			t.Errorf("zh Text(%q) = %q, want a Chinese translation", key, got)
		}
	}
}

func TestNew_InvalidLanguage(t *testing.T) {
	if _, err := New("not a language!"); err == nil {
		t.Errorf("New() error = nil, want parse error")
	}
}

func TestCatalogsComplete(t *testing.T) {
	for key := range messages[language.English] {
		for tag, msgs := range messages {
			if _, ok := msgs[key]; !ok {
				t.Errorf("%s catalog missing %q", tag, key)
			}
		}
	}
}
