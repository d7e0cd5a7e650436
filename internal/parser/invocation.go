package parser

import "strings"

// Invocation is one parsed command line, ready for expansion and launch.
type Invocation struct {
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	InputRedirect  string   `json:"input_redirect,omitempty"`
	OutputRedirect string   `json:"output_redirect,omitempty"`
	Background     bool     `json:"background"`
}

// Argv returns the command followed by its arguments, as passed to exec.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+1)
	argv = append(argv, inv.Command)
	return append(argv, inv.Args...)
}

// WithArgs returns a copy of inv carrying args.
func (inv Invocation) WithArgs(args []string) Invocation {
	out := inv
	out.Args = append([]string(nil), args...)
	return out
}

func (inv Invocation) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(inv.Argv(), " "))
	if inv.InputRedirect != "" {
		b.WriteString(" < " + inv.InputRedirect)
	}
	if inv.OutputRedirect != "" {
		b.WriteString(" > " + inv.OutputRedirect)
	}
	if inv.Background {
		b.WriteString(" &")
	}
	return b.String()
}
