// Package plugins provides exec-based plugin support for textfsm-parse.
// Plugins are separate binaries named textfsm-parse-<command> that are
// discovered and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// Prefix is the file name prefix every plugin binary carries.
const Prefix = "textfsm-parse-"

// EnvDir overrides the per-user plugin directory.
const EnvDir = "TEXTFSM_PARSE_PLUGINS"

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Dir returns the per-user plugin directory: $TEXTFSM_PARSE_PLUGINS, or
// ~/.textfsm-parse/plugins.
func Dir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".textfsm-parse", "plugins"), nil
}

// searchDirs lists the directories checked before PATH.
func searchDirs() []string {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if dir, err := Dir(); err == nil {
		dirs = append(dirs, dir)
	}
	return dirs
}

// FindPlugin searches for a plugin binary named textfsm-parse-<command>.
// It searches in the following locations in order:
//  1. Same directory as the textfsm-parse binary
//  2. The per-user plugin directory (see Dir)
//  3. Anywhere in PATH
//
// Returns the full path to the plugin binary if found.
func FindPlugin(command string) (string, error) {
	pluginName := Prefix + command

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(pluginName); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// List returns the command names of plugins installed in the search
// directories, sorted and without duplicates. PATH is not scanned.
func List() []string {
	var names []string
	for _, dir := range searchDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name, ok := strings.CutPrefix(e.Name(), Prefix)
			if !ok || name == "" {
				continue
			}
			if isExecutable(filepath.Join(dir, e.Name())) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Execute runs a plugin with the given arguments.
// It connects stdin, stdout, and stderr to the plugin process
// and returns the plugin's exit code.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 2
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%q is not a command, log file or pattern.\n", command)

	if installed := List(); len(installed) > 0 {
		fmt.Fprintf(&sb, "\nInstalled plugins: %s\n", strings.Join(installed, ", "))
	}

	sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	fmt.Fprintf(&sb, "  - %s%s in the same directory as textfsm-parse\n", Prefix, command)
	fmt.Fprintf(&sb, "  - ~/.textfsm-parse/plugins/%s%s (or $%s)\n", Prefix, command, EnvDir)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'textfsm-parse --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Windows has no execute bit, so any regular file counts there
	if info.Mode().IsRegular() {
		return info.Mode()&0111 != 0
	}

	return false
}
