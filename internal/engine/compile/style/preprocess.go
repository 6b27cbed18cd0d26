package style

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Preprocessor runs an external command that reads a stylesheet on stdin and
// writes CSS to stdout.
type Preprocessor struct {
	Command string
}

func (p Preprocessor) Run(ctx context.Context, source string) (string, error) {
	args := strings.Fields(p.Command)
	if len(args) == 0 {
		return "", fmt.Errorf("empty preprocessor command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", args[0], msg)
	}
	return stdout.String(), nil
}
