// Package viewer holds the command line and input handling of the graph viewer.
package viewer

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/examples"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed command line.
type Options struct {
	ConfigPath string
	Example    string
	LogLevel   slog.Level
	LogFormat  string
	Watch      bool
	Profile    bool
	Workers    int
}

// Parse processes command-line arguments. It returns the options, whether the program
// should exit cleanly (help was printed), or an ExitError.
//
// Parameters:
//   - args: the arguments without the program name
//   - output: receives usage and flag errors
//
// Returns:
//   - *Options: the parsed options, nil on exit or error
//   - bool: true if the program should exit cleanly
//   - error: an *ExitError for invalid arguments
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	flagSet := flag.NewFlagSet("viewer", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintf(output, `
viewer - draws node and edge layers on the GPU.

Usage:
  viewer [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    An HCL configuration with window, renderer, camera, style and graph blocks.

Examples:
  %s

Controls:
  left drag pans, left click picks, wheel zooms, F fits, R reloads,
  space recomputes, 1-9 toggle layers, P toggles the profiler.

Options:
`, strings.Join(examples.Names(), ", "))
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the configuration file.")
	exampleFlag := flagSet.String("example", "", "Name of a built-in example graph, used when the configuration has no graph.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	watchFlag := flagSet.Bool("watch", true, "Re-apply the style blocks when the configuration file changes.")
	profileFlag := flagSet.Bool("profile", false, "Log frame rate and memory statistics every second.")
	workersFlag := flagSet.Int("workers", -1, "Packing workers, overrides the renderer block. 0 packs on the loading goroutine.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	opts := &Options{
		ConfigPath: *configFlag,
		Example:    *exampleFlag,
		LogFormat:  strings.ToLower(*logFormatFlag),
		Watch:      *watchFlag,
		Profile:    *profileFlag,
		Workers:    *workersFlag,
	}
	if opts.ConfigPath == "" && flagSet.NArg() > 0 {
		opts.ConfigPath = flagSet.Arg(0)
	}
	if opts.ConfigPath == "" && opts.Example == "" {
		opts.Example = "basic"
	}
	if opts.Example != "" {
		if _, err := examples.ByName(opts.Example); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}

	if opts.LogFormat != "text" && opts.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	if err := opts.LogLevel.UnmarshalText([]byte(*logLevelFlag)); err != nil {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return opts, false, nil
}

// NewLogger builds the process logger from the options.
func NewLogger(opts *Options, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.LogLevel}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
