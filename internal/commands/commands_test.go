package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Command
		wantOK bool
	}{
		{"start bare", "/start", Command{Name: CmdStart}, true},
		{"start with theme", "/start  haunted library ", Command{Name: CmdStart, Arg: "haunted library"}, true},
		{"no slash", "status", Command{Name: CmdStatus}, true},
		{"upper case", "/RETRY", Command{Name: CmdRetry}, true},
		{"end with target", "/end <@U2|sam>", Command{Name: CmdEnd, Arg: "<@U2|sam>"}, true},
		{"stop alias", "/stop", Command{Name: CmdEnd}, true},
		{"reset dash", "/reset-consent", Command{Name: CmdResetConsent}, true},
		{"reset underscore", "/reset_consent", Command{Name: CmdResetConsent}, true},
		{"quit", "/quit", Command{Name: CmdQuit}, true},
		{"help", "/help", Command{Name: CmdHelp}, true},
		{"unknown", "/dance", Command{Name: cmdNone}, false},
		{"empty", "  ", Command{Name: cmdNone}, false},
		{"slash only", "/", Command{Name: cmdNone}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlayerRef(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"U123":          "U123",
		" U123 ":        "U123",
		"<@U123>":       "U123",
		"<@U123|robin>": "U123",
		"@U123":         "U123",
		"U123 extra":    "U123",
	}
	for in, want := range tests {
		assert.Equal(t, want, PlayerRef(in), in)
	}
}
