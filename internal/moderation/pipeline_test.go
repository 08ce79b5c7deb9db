package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(Config{
		MaxLength:       500,
		BlockList:       []string{"idiot", "stupid", "מניאק"},
		UsernameScripts: []string{"Hebrew"},
	})
}

func TestClassify(t *testing.T) {
	p := newTestPipeline()

	tests := []struct {
		name     string
		text     string
		accepted bool
		reason   string
		severity Severity
	}{
		{"plain message", "the bus is late again", true, "", Hard},
		{"hebrew message", "האוטובוס מאחר", true, "", Hard},
		{"empty", "", false, ReasonInvalid, Hard},
		{"whitespace only", "   \t ", false, ReasonInvalid, Hard},
		{"too long", strings.Repeat("a", 501), false, ReasonInvalid, Hard},
		{"max length in code points", strings.Repeat("שלום ", 99) + "שלום!", true, "", Hard},
		{"one code point over", strings.Repeat("שלום ", 99) + "שלום!!", false, ReasonInvalid, Hard},
		{"profanity word", "you idiot", false, ReasonInappropriate, Soft},
		{"profanity case folded", "STUPID driver", false, ReasonInappropriate, Soft},
		{"profanity without boundaries", "האיש המניאקהזה", false, ReasonInappropriate, Soft},
		{"repeated characters", "hello" + strings.Repeat("!", 11), false, ReasonSpam, Hard},
		{"ten repeats allowed", "hello" + strings.Repeat("!", 10), true, "", Hard},
		{"shouting", "WHERE IS THE BUS TODAY", false, ReasonSpam, Hard},
		{"short shouting allowed", "STOP NOW", true, "", Hard},
		{"profanity wins over spam", "IDIOT IDIOT IDIOT", false, ReasonInappropriate, Soft},
		{"structure wins over profanity", strings.Repeat("idiot ", 100), false, ReasonInvalid, Hard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.Classify(tt.text)
			assert.Equal(t, tt.accepted, v.Accepted)
			if !tt.accepted {
				assert.Equal(t, tt.reason, v.Reason)
				assert.Equal(t, tt.severity, v.Severity)
			}
		})
	}
}

func TestIsSpam_CapsRatioCountsLatinLettersOnly(t *testing.T) {
	// 12 Latin letters, 9 uppercase
	assert.True(t, IsSpam("HELLO WORLd ok"))
	// Hebrew letters do not dilute or trigger the ratio
	assert.False(t, IsSpam("שלום לכולם מה שלומכם היום"))
	assert.False(t, IsSpam("Hello World, how are you"))
}

func TestSanitizeUsername(t *testing.T) {
	p := newTestPipeline()

	assert.Equal(t, "Dana 42", p.SanitizeUsername("  Dana <42>!! "))
	assert.Equal(t, "דנה", p.SanitizeUsername("דנה🚌"))
	assert.Equal(t, "", p.SanitizeUsername("<$%^>"))
	assert.Equal(t, "ab", p.SanitizeUsername("a\u200bb"))
}

func TestSanitizeUsername_ConfiguredScripts(t *testing.T) {
	latinOnly := NewPipeline(Config{MaxLength: 10})
	assert.Equal(t, "", latinOnly.SanitizeUsername("דנה"))

	arabic := NewPipeline(Config{MaxLength: 10, UsernameScripts: []string{"Arabic", "NotAScript"}})
	assert.Equal(t, "سلام", arabic.SanitizeUsername("سلام"))
}

func TestIsValidUsername(t *testing.T) {
	assert.False(t, IsValidUsername("a", 2, 20))
	assert.True(t, IsValidUsername("ab", 2, 20))
	assert.True(t, IsValidUsername(strings.Repeat("ש", 20), 2, 20))
	assert.False(t, IsValidUsername(strings.Repeat("ש", 21), 2, 20))
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "soft", Soft.String())
	assert.Equal(t, "hard", Hard.String())
}
