// Package expand rewrites argument tokens before launch: environment names
// resolve to their values and "$$" becomes the shell's pid.
package expand

import (
	"strconv"
	"strings"
)

const (
	pidToken   = "$$"
	macroToken = "testdir$$"
	macroStem  = "testdir"
)

// Lookuper resolves environment names. *env.Env satisfies it.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// LookupFunc adapts a plain function to Lookuper.
type LookupFunc func(name string) (string, bool)

func (f LookupFunc) Lookup(name string) (string, bool) { return f(name) }

type Expander struct {
	env Lookuper
	pid string
}

// New returns an Expander that substitutes pid for "$$". A nil env disables
// environment lookup.
func New(env Lookuper, pid int) *Expander {
	return &Expander{env: env, pid: strconv.Itoa(pid)}
}

// Expand returns a new slice; args is not modified.
func (x *Expander) Expand(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = x.token(a)
	}
	return out
}

func (x *Expander) token(tok string) string {
	if x.env != nil {
		if v, ok := x.env.Lookup(tok); ok {
			return v
		}
	}
	if strings.Contains(tok, pidToken) {
		return strings.ReplaceAll(tok, pidToken, x.pid)
	}
	return tok
}

// ExpandLine rewrites every "testdir$$" in the raw line to "testdir<pid>".
// When a rewrite happened, the line is cut at the first '$' following the
// last rewrite. The line terminator survives the cut.
func (x *Expander) ExpandLine(line string) string {
	if !strings.Contains(line, macroToken) {
		return line
	}
	body, term := splitTerminator(line)

	var b strings.Builder
	b.Grow(len(body) + len(x.pid))
	rest := body
	for {
		i := strings.Index(rest, macroToken)
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		b.WriteString(macroStem)
		b.WriteString(x.pid)
		rest = rest[i+len(macroToken):]
	}
	if i := strings.IndexByte(rest, '$'); i >= 0 {
		rest = rest[:i]
	}
	b.WriteString(rest)
	b.WriteString(term)
	return b.String()
}

func splitTerminator(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}
