package generate

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// ClaudeCLIName is the provider label.
	ClaudeCLIName = "Claude CLI"

	claudeTimeout = 2 * time.Minute
)

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ClaudeCLI generates text by calling the claude CLI in print mode.
type ClaudeCLI struct {
	model string
	run   runFunc
}

// NewClaudeCLI returns a provider using model (default "haiku").
func NewClaudeCLI(model string) *ClaudeCLI {
	if model == "" {
		model = "haiku"
	}
	return &ClaudeCLI{model: model, run: runCommand}
}

// Name implements TextGenerator.
func (c *ClaudeCLI) Name() string { return ClaudeCLIName }

// Generate implements TextGenerator.
func (c *ClaudeCLI) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, claudeTimeout)
	defer cancel()

	output, err := c.run(ctx, "claude", "--model", c.model, "-p", req.fullPrompt())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("claude CLI timed out after %s", claudeTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("claude CLI error: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("claude CLI error: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
