package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
)

// Shell reads command lines from in and writes responses to out.
type Shell struct {
	svc    *Service
	in     io.Reader
	out    io.Writer
	prompt string

	failure *color.Color
}

// New creates a shell over svc.
func New(svc *Service, in io.Reader, out io.Writer, prompt string) *Shell {
	return &Shell{
		svc:     svc,
		in:      in,
		out:     out,
		prompt:  prompt,
		failure: color.New(color.FgRed, color.Bold),
	}
}

// Run processes lines until quit, end of input, or ctx is done.
// End of input saves like quit does.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(s.out, s.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "failed to read command")
			}
			s.print(s.svc.Save(ctx))
			return nil
		}

		resp, quit := s.svc.Execute(ctx, scanner.Text())
		s.print(resp)
		if quit {
			return nil
		}
	}
}

func (s *Shell) print(resp Response) {
	if resp.Message == "" {
		return
	}
	if resp.Success {
		fmt.Fprintln(s.out, resp.Message)
		return
	}
	s.failure.Fprintln(s.out, resp.Message)
}

// splitArgs splits a command line on whitespace, keeping quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
