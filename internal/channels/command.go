package channels

import "strings"

// Command is an operator command parsed from a chat message.
type Command struct {
	Name string // lowercased, no leading slash or @bot suffix
	Args string // raw argument string, trimmed
}

// Arg returns the n-th whitespace-separated argument, or "".
func (c Command) Arg(n int) string {
	fields := strings.Fields(c.Args)
	if n >= len(fields) {
		return ""
	}
	return fields[n]
}

// Rest returns the argument string with the first n fields removed. Used by
// commands whose trailing argument is free text.
func (c Command) Rest(n int) string {
	fields := strings.Fields(c.Args)
	if n >= len(fields) {
		return ""
	}
	rest := c.Args
	for i := 0; i < n; i++ {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[i]))
	}
	return rest
}

// ParseCommand extracts a bot command from message text. Returns false for
// plain messages. The "/cmd@BotName args" form used in Telegram group chats
// is normalized to "/cmd args".
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return Command{}, false
	}

	name := text[1:]
	args := ""
	if idx := strings.IndexAny(name, " \t\n"); idx >= 0 {
		args = strings.TrimSpace(name[idx:])
		name = name[:idx]
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: args}, true
}
