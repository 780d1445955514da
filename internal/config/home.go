package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type homeKey struct{}

// WithHome stores the home path in the context.
func WithHome(ctx context.Context, home string) context.Context {
	return context.WithValue(ctx, homeKey{}, home)
}

// HomeFrom returns the missionctl home path from the context, if set.
func HomeFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(homeKey{})
	s, ok := v.(string)
	return s, ok
}

// MustHomeFrom returns the home path from the context, or panics if not set.
func MustHomeFrom(ctx context.Context) string {
	if h, ok := HomeFrom(ctx); ok && h != "" {
		return h
	}
	panic("missionctl home missing from context")
}

// HomeEnv names the environment variable that relocates the home directory.
const HomeEnv = EnvPrefix + "_HOME"

// ResolveHome picks the home directory: the override, then $MISSIONCTL_HOME, then
// ~/.missionctl. A leading "~/" in the override or env value is expanded.
func ResolveHome(override string) (string, error) {
	for _, p := range []string{override, os.Getenv(HomeEnv)} {
		if p != "" {
			return expandTilde(p)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine user home directory")
	}
	return filepath.Join(home, ".missionctl"), nil
}

func expandTilde(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return filepath.Clean(p), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
