// Package cmd holds what the command line tools share.
package cmd

import (
	"log/slog"
	"os"

	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/builtin"
)

// NewRegistry returns a registry with every plugin kind compiled in.
func NewRegistry() (*hostcore.Registry, error) {
	r := hostcore.NewRegistry()
	if err := builtin.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// NewLogger returns a text logger writing to stderr.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
