package relay

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxChatBytes is the byte limit for a single chat message.
	MaxChatBytes = 4096
	// MaxChatChars is the character limit for a single chat message.
	MaxChatChars = 2000
)

// ValidateChatMessage checks size and encoding limits for a chat message.
// Empty messages are handled upstream (dropped, not an error).
func ValidateChatMessage(text string) error {
	if len(text) > MaxChatBytes {
		return fmt.Errorf("message exceeds %d byte limit", MaxChatBytes)
	}
	if utf8.RuneCountInString(text) > MaxChatChars {
		return fmt.Errorf("message exceeds %d character limit", MaxChatChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}
