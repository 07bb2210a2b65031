// file: internal/auth/prompt.go

package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompt asks the user to open the authorization URL in a browser
// and paste back the code from the redirect. It blocks on stdin; there is
// no timeout here, cancellation belongs to the surrounding command.
type TerminalPrompt struct {
	In  io.Reader
	Out io.Writer
}

// Code prints the authorization URL and reads the code from the input.
func (p *TerminalPrompt) Code(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintf(p.Out, "Open the following URL in your browser and authorize access:\n\n  %s\n\n", authURL)
	fmt.Fprintf(p.Out, "Paste the code from the redirect URL here: ")

	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)

	go func() {
		reader := bufio.NewReader(p.In)
		line, err := reader.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return "", fmt.Errorf("failed to read authorization code: %w", res.err)
		}
		code := strings.TrimSpace(res.line)
		if code == "" {
			return "", fmt.Errorf("empty authorization code")
		}
		return code, nil
	}
}
