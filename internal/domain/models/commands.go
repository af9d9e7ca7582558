package models

import "strings"

// CommandType enumerates supported field worker command categories.
type CommandType string

const (
	CommandMovement CommandType = "mov"
	CommandProgress CommandType = "avance"
	CommandClosure  CommandType = "cierre"
	CommandHelp     CommandType = "ayuda"
	CommandUnknown  CommandType = "unknown"
)

// Command represents a parsed worker instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// IsCommand reports whether the message looks like a slash command.
func IsCommand(message string) bool {
	return strings.HasPrefix(strings.TrimSpace(message), "/")
}

// ParseCommand derives a Command instance from free-form text messages.
func ParseCommand(message string) Command {
	normalized := strings.TrimSpace(message)
	if normalized == "" {
		return Command{Type: CommandUnknown, Raw: message}
	}

	tokens := strings.Fields(normalized)
	cmd := Command{Raw: message}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch head {
	case string(CommandMovement), "movimiento":
		cmd.Type = CommandMovement
	case string(CommandProgress):
		cmd.Type = CommandProgress
	case string(CommandClosure):
		cmd.Type = CommandClosure
	case string(CommandHelp), "help":
		cmd.Type = CommandHelp
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
