package shell

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// ErrInterrupt is returned by ReadLine when the user interrupts the prompt.
var ErrInterrupt = errors.New("interrupted")

// LineReader yields one input line per call, without its terminator. At end
// of input it returns io.EOF, possibly alongside a final unterminated line.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// PromptReader prints the prompt to out and reads from a buffered stream.
type PromptReader struct {
	prompt string
	out    io.Writer
	in     *bufio.Reader
	src    io.Reader

	closeOnce sync.Once
}

func NewPromptReader(in io.Reader, out io.Writer, prompt string) *PromptReader {
	return &PromptReader{prompt: prompt, out: out, in: bufio.NewReader(in), src: in}
}

func (r *PromptReader) ReadLine() (string, error) {
	if r.prompt != "" && r.out != nil {
		if _, err := io.WriteString(r.out, r.prompt); err != nil {
			return "", err
		}
	}
	line, err := r.in.ReadString('\n')
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	if err != nil && line == "" {
		return "", err
	}
	return line, err
}

// Close closes the underlying stream when it is closable.
func (r *PromptReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if c, ok := r.src.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// EditorReader reads lines through an interactive line editor. Ctrl-Z typed
// at the prompt is delivered to onSuspend instead of the terminal driver.
type EditorReader struct {
	rl *readline.Instance

	closeOnce sync.Once
	closeErr  error
}

func NewEditorReader(in *os.File, out io.Writer, prompt string, onSuspend func()) (*EditorReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		Stdin:                  in,
		Stdout:                 out,
		HistoryLimit:           500,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			if r == readline.CharCtrlZ {
				if onSuspend != nil {
					onSuspend()
				}
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		return nil, err
	}
	return &EditorReader{rl: rl}, nil
}

// Stdout is a writer that keeps the prompt intact while printing.
func (r *EditorReader) Stdout() io.Writer { return r.rl.Stdout() }

func (r *EditorReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	return line, err
}

func (r *EditorReader) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.rl.Close() })
	return r.closeErr
}
