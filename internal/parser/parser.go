package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Default input bounds. Zero disables a bound.
const (
	DefaultMaxLineLength = 2048
	DefaultMaxArgs       = 512
)

const (
	opInput      = "<"
	opOutput     = ">"
	opBackground = "&"
)

var (
	ErrSyntax                = errors.New("syntax error")
	ErrMissingRedirectTarget = fmt.Errorf("%w: missing redirect target", ErrSyntax)
	ErrDuplicateRedirect     = fmt.Errorf("%w: duplicate redirect", ErrSyntax)
	ErrMissingCommand        = fmt.Errorf("%w: missing command", ErrSyntax)

	ErrLineTooLong      = errors.New("line too long")
	ErrTooManyArguments = errors.New("too many arguments")
)

// Kind classifies a raw input line.
type Kind int

const (
	KindCommand Kind = iota
	KindEmpty
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindEmpty:
		return "empty"
	case KindComment:
		return "comment"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of parsing one line. Invocation is only meaningful
// when Kind is KindCommand.
type Result struct {
	Kind       Kind
	Invocation Invocation
}

// Parser turns raw lines into invocations. The zero value applies no bounds.
type Parser struct {
	MaxLineLength int
	MaxArgs       int
}

func New(maxLineLength, maxArgs int) *Parser {
	return &Parser{MaxLineLength: maxLineLength, MaxArgs: maxArgs}
}

// Parse strips the line terminator, classifies the line and, for commands,
// extracts the background marker and redirect clauses before forming the
// argument list.
func (p *Parser) Parse(line string) (Result, error) {
	line = trimTerminator(line)
	if strings.HasPrefix(line, "#") {
		return Result{Kind: KindComment}, nil
	}
	if strings.TrimSpace(line) == "" {
		return Result{Kind: KindEmpty}, nil
	}
	if p.MaxLineLength > 0 && len(line) > p.MaxLineLength {
		return Result{}, fmt.Errorf("%w: %d characters exceeds limit of %d", ErrLineTooLong, len(line), p.MaxLineLength)
	}

	body, background := splitBackground(line)
	inv, err := scan(strings.Fields(body))
	if err != nil {
		return Result{}, err
	}
	if p.MaxArgs > 0 && len(inv.Args) > p.MaxArgs {
		return Result{}, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyArguments, len(inv.Args), p.MaxArgs)
	}
	inv.Background = background
	return Result{Kind: KindCommand, Invocation: inv}, nil
}

func trimTerminator(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// splitBackground removes a trailing '&', with or without whitespace before it.
func splitBackground(line string) (string, bool) {
	trimmed := strings.TrimRightFunc(line, unicode.IsSpace)
	if strings.HasSuffix(trimmed, opBackground) {
		return strings.TrimSuffix(trimmed, opBackground), true
	}
	return line, false
}

const (
	stateCommand = iota
	stateWord
	stateTarget
)

// scan walks the fields once, left to right. Redirect operators switch the
// scanner into stateTarget, where exactly one filename is consumed.
func scan(fields []string) (Invocation, error) {
	var (
		inv     Invocation
		state   = stateCommand
		pending string
	)
	for _, f := range fields {
		switch state {
		case stateCommand:
			if isOperator(f) {
				return Invocation{}, fmt.Errorf("%w: line starts with %q", ErrMissingCommand, f)
			}
			inv.Command = f
			state = stateWord
		case stateWord:
			if !isOperator(f) {
				inv.Args = append(inv.Args, f)
				continue
			}
			if (f == opInput && inv.InputRedirect != "") || (f == opOutput && inv.OutputRedirect != "") {
				return Invocation{}, fmt.Errorf("%w: %q given more than once", ErrDuplicateRedirect, f)
			}
			pending = f
			state = stateTarget
		case stateTarget:
			if isOperator(f) {
				return Invocation{}, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, pending)
			}
			if pending == opInput {
				inv.InputRedirect = f
			} else {
				inv.OutputRedirect = f
			}
			state = stateWord
		}
	}
	switch state {
	case stateCommand:
		return Invocation{}, ErrMissingCommand
	case stateTarget:
		return Invocation{}, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, pending)
	}
	return inv, nil
}

func isOperator(f string) bool { return f == opInput || f == opOutput }
