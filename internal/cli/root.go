// Package cli provides the command-line interface for textfsm-parse.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/cli/commands"
	"github.com/riceball-k/textfsm-parse-to-csv/internal/cli/plugins"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/pathset"
)

// Execute runs the root command with the process arguments and returns the
// exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run runs the root command with args and returns the exit code:
// 0 on success or a cancelled selection, 1 when some pairs failed, and 2 on
// configuration or fatal errors.
func Run(args []string, stdout, stderr io.Writer) int {
	commands.ExitCode = 0
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// A first argument that is neither a command nor a file may be a plugin
	if len(args) > 0 && mayBePlugin(rootCmd, args[0]) {
		if pluginPath, err := plugins.FindPlugin(args[0]); err == nil {
			return plugins.Execute(pluginPath, args[1:])
		}
	}

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if len(args) > 0 && mayBePlugin(rootCmd, args[0]) && looksLikeCommand(args[0]) {
			_, _ = fmt.Fprintln(stderr, plugins.FormatNotFoundError(args[0]))
		}
		return 2
	}
	return commands.ExitCode
}

// mayBePlugin reports whether arg could name a plugin: it is not a flag,
// a built-in command, an existing file or a glob pattern.
func mayBePlugin(rootCmd *cobra.Command, arg string) bool {
	if arg == "" || arg[0] == '-' {
		return false
	}
	if isBuiltinCommand(rootCmd, arg) || pathset.HasMeta(arg) {
		return false
	}
	if _, err := os.Stat(arg); err == nil {
		return false
	}
	return true
}

// looksLikeCommand filters out arguments that are clearly file paths, so a
// mistyped log file name does not get a plugin hint.
func looksLikeCommand(arg string) bool {
	return !strings.ContainsAny(arg, `./\`)
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	global := &commands.GlobalOptions{}
	opts := &commands.ParseOptions{GlobalOptions: global}

	rootCmd := &cobra.Command{
		Use:   "textfsm-parse [flags] [logfile...]",
		Short: "Parse log files with TextFSM templates into CSV or JSON",
		Long: `textfsm-parse applies every TextFSM template to every log file and writes
one CSV (or JSON) file per pair.

Templates are given with -t and log files as arguments; both accept glob
patterns, including ** for recursive matches. When either is missing, an
interactive file chooser opens.

Output files are named <log>_<template>_<YYYYMMDD_HHMMSS>.csv and are written
to the --output directory, or beside each log file.

Exit codes:
  0 - All pairs written (or selection cancelled)
  1 - Some pairs failed
  2 - Configuration or runtime error

PLUGINS:
  Unknown commands run standalone binaries named textfsm-parse-<command>.

  Plugin locations (searched in order):
    1. Same directory as the textfsm-parse binary
    2. ~/.textfsm-parse/plugins/
    3. Anywhere in PATH`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunParse(cmd, args, opts)
		},
	}

	commands.AddGlobalFlags(rootCmd, global)
	commands.AddParseFlags(rootCmd, opts)

	// Add subcommands
	rootCmd.AddCommand(commands.NewValidateCommand(global))
	rootCmd.AddCommand(commands.NewDetectCommand(global))
	rootCmd.AddCommand(commands.NewWatchCommand(global))
	rootCmd.AddCommand(commands.NewHistoryCommand(global))
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
