// Package clipboard copies exported text to the system clipboard via
// the platform's clipboard command.
package clipboard

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrClipboardUnavailable is returned when no clipboard command is found.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// command is one clipboard program and its arguments.
type command struct {
	name string
	args []string
}

// candidates lists the clipboard commands to try on goos, in order.
func candidates(goos string) []command {
	switch goos {
	case "darwin":
		return []command{{name: "pbcopy"}}
	case "linux", "freebsd":
		return []command{
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	case "windows":
		return []command{{name: "clip"}}
	default:
		return nil
	}
}

// Copier writes text to a clipboard command.
type Copier struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args []string, stdin string) error
}

// New returns a Copier for the current platform.
func New() *Copier {
	return &Copier{goos: runtime.GOOS, lookPath: exec.LookPath, run: runCommand}
}

func runCommand(name string, args []string, stdin string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Copier) find() (command, bool) {
	for _, cand := range candidates(c.goos) {
		if _, err := c.lookPath(cand.name); err == nil {
			return cand, true
		}
	}
	return command{}, false
}

// Available reports whether a clipboard command is installed.
func (c *Copier) Available() bool {
	_, ok := c.find()
	return ok
}

// Copy copies text to the clipboard. It returns ErrClipboardUnavailable
// when no clipboard command is installed.
func (c *Copier) Copy(text string) error {
	cmd, ok := c.find()
	if !ok {
		return ErrClipboardUnavailable
	}
	return c.run(cmd.name, cmd.args, text)
}
