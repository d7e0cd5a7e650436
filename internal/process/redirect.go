package process

import (
	"errors"
	"fmt"
	"os"
)

const (
	msgInputFailed  = "cannot open file for input"
	msgOutputFailed = "Error opening or creating file"
)

var (
	ErrRedirectInput  = errors.New(msgInputFailed)
	ErrRedirectOutput = errors.New(msgOutputFailed)
)

// redirects holds the files opened for one child. The parent's copies are
// closed once the child has started or the launch has been abandoned.
type redirects struct {
	in  *os.File
	out *os.File
}

func openRedirects(input, output string) (redirects, error) {
	var r redirects
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return r, fmt.Errorf("%w: %w", ErrRedirectInput, err)
		}
		r.in = f
	}
	if output != "" {
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			r.close()
			return redirects{}, fmt.Errorf("%w: %w", ErrRedirectOutput, err)
		}
		r.out = f
	}
	return r, nil
}

func (r redirects) close() {
	if r.in != nil {
		_ = r.in.Close()
	}
	if r.out != nil {
		_ = r.out.Close()
	}
}
