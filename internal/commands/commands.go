// Package commands turns player slash commands and room messages into engine
// calls and renders the short private replies the host shows the invoker.
package commands

import (
	"strings"
)

// Name identifies a slash command.
type Name string

const (
	CmdStart        Name = "start"
	CmdEnd          Name = "end"
	CmdResetConsent Name = "reset_consent"
	CmdRetry        Name = "retry"
	CmdQuit         Name = "quit"
	CmdStatus       Name = "status"
	CmdHelp         Name = "help"
	cmdNone         Name = "" // not a command
)

// Command is a parsed slash command.
type Command struct {
	Name Name
	Arg  string // everything after the command word, trimmed
}

// Parse parses "/start haunted library" style input. The leading slash is
// optional and names are case-insensitive. ok is false for anything that is
// not a known command.
func Parse(input string) (cmd Command, ok bool) {
	known := map[string]Name{
		"start":         CmdStart,
		"end":           CmdEnd,
		"stop":          CmdEnd,
		"reset_consent": CmdResetConsent,
		"reset-consent": CmdResetConsent,
		"resetconsent":  CmdResetConsent,
		"retry":         CmdRetry,
		"quit":          CmdQuit,
		"status":        CmdStatus,
		"help":          CmdHelp,
	}

	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return Command{Name: cmdNone}, false
	}

	word, arg, _ := strings.Cut(trimmed, " ")
	name, found := known[strings.ToLower(word)]
	if !found {
		return Command{Name: cmdNone}, false
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}, true
}

// PlayerRef extracts a player id from a command argument. It accepts a bare
// id as well as mention markup such as "<@U123>" or "<@U123|robin>".
func PlayerRef(arg string) string {
	ref := strings.TrimSpace(arg)
	if strings.HasPrefix(ref, "<@") && strings.HasSuffix(ref, ">") {
		ref = strings.TrimSuffix(strings.TrimPrefix(ref, "<@"), ">")
		ref, _, _ = strings.Cut(ref, "|")
	}
	ref = strings.TrimPrefix(ref, "@")
	if i := strings.IndexAny(ref, " \t"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
