package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Command wraps an arbitrary local OCR tool that prints recognized text to
// stdout. The image path replaces the "{image}" placeholder in the argument
// list, or is appended when no placeholder is present.
type Command struct {
	name    string
	binPath string
	args    []string
}

// NewCommand creates a command-line engine.
func NewCommand(name, binPath string, args []string) *Command {
	return &Command{name: name, binPath: binPath, args: args}
}

func (c *Command) Name() string { return c.name }

// Recognize runs the external tool and returns its trimmed stdout.
func (c *Command) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := make([]string, 0, len(c.args)+1)
	replaced := false
	for _, a := range c.args {
		if strings.Contains(a, "{image}") {
			a = strings.ReplaceAll(a, "{image}", imagePath)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, imagePath)
	}

	cmd := exec.CommandContext(ctx, c.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "engine %s: %s failed: %s", c.name, c.binPath, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
