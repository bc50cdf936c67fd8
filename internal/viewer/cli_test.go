package viewer

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     *Options
		exit     bool
		exitCode int
	}{
		{
			name: "defaults to the basic example",
			args: nil,
			want: &Options{Example: "basic", LogLevel: slog.LevelInfo, LogFormat: "text", Watch: true, Workers: -1},
		},
		{
			name: "positional config",
			args: []string{"-log-level", "debug", "-watch=false", "graph.hcl"},
			want: &Options{ConfigPath: "graph.hcl", LogLevel: slog.LevelDebug, LogFormat: "text", Workers: -1},
		},
		{
			name: "config flag and example",
			args: []string{"-config", "a.hcl", "-example", "circuit", "-log-format", "JSON", "-profile", "-workers", "4"},
			want: &Options{ConfigPath: "a.hcl", Example: "circuit", LogLevel: slog.LevelInfo, LogFormat: "json", Watch: true, Profile: true, Workers: 4},
		},
		{name: "help", args: []string{"-h"}, exit: true},
		{name: "unknown flag", args: []string{"-nope"}, exitCode: 2},
		{name: "unknown example", args: []string{"-example", "nope"}, exitCode: 2},
		{name: "bad level", args: []string{"-log-level", "loud"}, exitCode: 2},
		{name: "bad format", args: []string{"-log-format", "xml"}, exitCode: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, exit, err := Parse(tt.args, &out)
			if tt.exitCode != 0 {
				var exitErr *ExitError
				require.True(t, errors.As(err, &exitErr))
				assert.Equal(t, tt.exitCode, exitErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exit, exit)
			if tt.exit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(&Options{LogLevel: slog.LevelWarn, LogFormat: "json"}, &out)
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
}
