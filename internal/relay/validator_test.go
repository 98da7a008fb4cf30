package relay

import (
	"strings"
	"testing"
)

func TestValidateChatMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"normal text", "hello there", false},
		{"exactly max chars", strings.Repeat("a", MaxChatChars), false},
		{"over max chars", strings.Repeat("a", MaxChatChars+1), true},
		// 2 bytes per rune: 4000 bytes, 2000 chars — inside both limits.
		{"exactly max chars multibyte", strings.Repeat("ä", MaxChatChars), false},
		{"over max chars multibyte", strings.Repeat("ä", MaxChatChars+1), true},
		// 4 bytes per rune: 4100 bytes but only 1025 chars — byte limit only.
		{"over max bytes multibyte", strings.Repeat("\U00010348", MaxChatBytes/4+1), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatMessage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChatMessage: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
