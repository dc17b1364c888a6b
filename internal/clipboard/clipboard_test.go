package clipboard

import (
	"errors"
	"reflect"
	"testing"
)

func fakeCopier(goos string, installed ...string) (*Copier, *[]string) {
	var calls []string
	have := make(map[string]bool)
	for _, name := range installed {
		have[name] = true
	}
	c := &Copier{
		goos: goos,
		lookPath: func(name string) (string, error) {
			if have[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		run: func(name string, args []string, stdin string) error {
			calls = append(calls, name)
			calls = append(calls, args...)
			calls = append(calls, stdin)
			return nil
		},
	}
	return c, &calls
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		installed []string
		want      []string
	}{
		{"macOS", "darwin", []string{"pbcopy"}, []string{"pbcopy", "refs"}},
		{"wayland first", "linux", []string{"xclip", "wl-copy"}, []string{"wl-copy", "refs"}},
		{"xclip", "linux", []string{"xclip", "xsel"}, []string{"xclip", "-selection", "clipboard", "refs"}},
		{"xsel", "linux", []string{"xsel"}, []string{"xsel", "--clipboard", "--input", "refs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := fakeCopier(tt.goos, tt.installed...)
			if !c.Available() {
				t.Fatal("Available() = false")
			}
			if err := c.Copy("refs"); err != nil {
				t.Fatalf("Copy() error = %v", err)
			}
			if !reflect.DeepEqual(*calls, tt.want) {
				t.Errorf("ran %v, want %v", *calls, tt.want)
			}
		})
	}
}

func TestCopy_Unavailable(t *testing.T) {
	for _, goos := range []string{"linux", "plan9"} {
		c, calls := fakeCopier(goos)
		if c.Available() {
			t.Errorf("%s: Available() = true with nothing installed", goos)
		}
		if err := c.Copy("refs"); !errors.Is(err, ErrClipboardUnavailable) {
			t.Errorf("%s: Copy() error = %v, want ErrClipboardUnavailable", goos, err)
		}
		if len(*calls) != 0 {
			t.Errorf("%s: ran %v", goos, *calls)
		}
	}
}
