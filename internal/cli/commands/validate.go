package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/config"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// Check statuses.
const (
	statusOK    = "ok"
	statusWarn  = "warning"
	statusError = "error"
)

// CheckResult represents the result of a single validation check
type CheckResult struct {
	Check   string
	Status  string // "ok", "warning", "error"
	Message string
	Details []string
}

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	*GlobalOptions
	Templates []string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(g *GlobalOptions) *cobra.Command {
	opts := &ValidateOptions{GlobalOptions: g}

	cmd := &cobra.Command{
		Use:   "validate [logfile...]",
		Short: "Check config, templates and log patterns without writing anything",
		Long: `Check a configuration without running a batch.

Checks:
  - Config file syntax and values
  - Output directory and format
  - Every template compiles
  - Log patterns are well formed and match files

Templates and log patterns come from -t and the positional arguments,
falling back to the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "Template file or glob pattern (can be repeated)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	ctx := contextOf(cmd)
	out := cmd.OutOrStdout()

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		printChecks(out, []CheckResult{{Check: "Config", Status: statusError, Message: err.Error()}}, opts.Verbose)
		return fmt.Errorf("validation failed: %w", err)
	}
	if len(opts.Templates) > 0 {
		cfg.Templates = opts.Templates
	}
	if len(args) > 0 {
		cfg.Logs = args
	}

	results := []CheckResult{checkConfig(opts.ConfigPath), checkOutput(cfg)}

	ext, err := extract.New(extract.WithEncoding(cfg.Encoding))
	if err != nil {
		return err
	}
	results = append(results, checkTemplates(ext, cfg.Templates)...)
	results = append(results, checkLogs(cfg.Logs))
	results = append(results, checkWebhooks(cfg))

	errCount := printChecks(out, results, opts.Verbose)
	if errCount > 0 {
		return fmt.Errorf("validation failed: %d error(s)", errCount)
	}
	return nil
}

func checkConfig(path string) CheckResult {
	if path == "" {
		return CheckResult{Check: "Config", Status: statusOK, Message: "No config file, using defaults"}
	}
	return CheckResult{Check: "Config", Status: statusOK, Message: fmt.Sprintf("Loaded %s", path)}
}

func checkOutput(cfg *config.Config) CheckResult {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "beside each log file"
	}
	return CheckResult{
		Check:   "Output",
		Status:  statusOK,
		Message: fmt.Sprintf("%s files, %s", cfg.Output.Format, dir),
	}
}

func checkTemplates(ext *extract.Extractor, patterns []string) []CheckResult {
	if len(patterns) == 0 {
		return []CheckResult{{
			Check:   "Templates",
			Status:  statusWarn,
			Message: "No templates configured, the chooser will open at run time",
		}}
	}

	files, err := resolvePatterns(patterns)
	if err != nil {
		return []CheckResult{{Check: "Templates", Status: statusError, Message: err.Error()}}
	}
	if len(files) == 0 {
		return []CheckResult{{
			Check:   "Templates",
			Status:  statusError,
			Message: fmt.Sprintf("No template files matched %v", patterns),
		}}
	}

	results := make([]CheckResult, 0, len(files))
	for _, f := range files {
		tmpl, err := ext.LoadTemplate(f)
		if err != nil {
			results = append(results, CheckResult{Check: "Template " + f, Status: statusError, Message: err.Error()})
			continue
		}
		results = append(results, CheckResult{
			Check:   "Template " + f,
			Status:  statusOK,
			Message: fmt.Sprintf("Compiles, %d fields", len(tmpl.Header)),
			Details: tmpl.Header,
		})
	}
	return results
}

func checkLogs(patterns []string) CheckResult {
	result := CheckResult{Check: "Log files"}
	if len(patterns) == 0 {
		result.Status = statusWarn
		result.Message = "No log files configured, the chooser will open at run time"
		return result
	}

	files, err := resolvePatterns(patterns)
	if err != nil {
		result.Status = statusError
		result.Message = err.Error()
		return result
	}
	if len(files) == 0 {
		result.Status = statusError
		result.Message = fmt.Sprintf("No log files matched %v", patterns)
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("%d file(s) matched", len(files))
	result.Details = files
	return result
}

func checkWebhooks(cfg *config.Config) CheckResult {
	result := CheckResult{Check: "Webhooks", Status: statusOK}
	if len(cfg.Webhooks) == 0 {
		result.Message = "None configured"
		return result
	}
	result.Message = fmt.Sprintf("%d configured", len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		result.Details = append(result.Details, fmt.Sprintf("%s (%s, timeout %s)", name, wh.Trigger, wh.Timeout))
	}
	return result
}

// printChecks writes the check list and returns the number of errors.
func printChecks(w io.Writer, results []CheckResult, verbose bool) int {
	okCount, warnCount, errCount := 0, 0, 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case statusOK:
			icon = "PASS"
			okCount++
		case statusWarn:
			icon = "WARN"
			warnCount++
		case statusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if verbose || r.Status != statusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
	return errCount
}
