package bot

import (
	"strings"
	"unicode"
)

// Parse splits "<prefix><command> <args>" into command and args. Text that
// does not start with prefix, or a bare prefix, reports ok=false. A Telegram
// style "@botname" suffix on the command is dropped.
func Parse(prefix, text string) (command, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(text, prefix)
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		command = rest
	} else {
		command, args = rest[:end], strings.TrimSpace(rest[end:])
	}
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	if command == "" {
		return "", "", false
	}
	return command, args, true
}
