package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/detector"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	*GlobalOptions

	Templates   []string
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand(g *GlobalOptions) *cobra.Command {
	opts := &DetectOptions{GlobalOptions: g}

	cmd := &cobra.Command{
		Use:   "detect <logfile>",
		Short: "Find which templates parse a log file",
		Long: `Apply every candidate template to the head of a log file and rank them.

Templates are ranked by the number of records extracted, then by how many
fields those records fill. Templates that fail to compile are listed last
with their error.

Optionally generates a starter config file with --write-config.

Example:
  textfsm-parse detect -t 'templates/*.textfsm' switch1.log
  textfsm-parse detect --all -t 'templates/**/*.textfsm' switch1.log
  textfsm-parse detect -w parse.yaml -t 'templates/*.textfsm' switch1.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "Candidate template file or glob pattern (can be repeated)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every template, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := contextOf(cmd)

	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}
	patterns := cfg.Templates
	if len(opts.Templates) > 0 {
		patterns = opts.Templates
	}
	if len(patterns) == 0 {
		return errors.New("no candidate templates: pass -t or set templates in the config file")
	}
	templates, err := resolvePatterns(patterns)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return fmt.Errorf("no template files matched %v", patterns)
	}

	ext, err := extract.New(extract.WithEncoding(cfg.Encoding))
	if err != nil {
		return err
	}
	d := detector.New(ext, detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, logFile, templates)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, logFile, opts)
	default:
		return outputDetectText(out, result, logFile, opts)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Template Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d", result.SampledLines)
	if result.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Templates tried: %d\n", len(result.Candidates))
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No template extracted any records.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: check that the sample covers the command output the templates expect,")
		fmt.Fprintln(w, "or raise --sample.")
		if opts.ShowAll {
			printCandidates(w, result.Candidates, 1)
		}
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Best match: %s\n", best.Template)
	fmt.Fprintf(w, "Records: %d, fields filled: %.1f%%\n", best.Records, best.Coverage*100)
	fmt.Fprintf(w, "Fields: %v\n", best.Header)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Candidates) > 1 {
		fmt.Fprintln(w, "--- Other templates ---")
		printCandidates(w, result.Candidates[1:], 2)
	}

	return nil
}

func printCandidates(w io.Writer, candidates []detector.Candidate, start int) {
	for i, c := range candidates {
		if c.Err != nil {
			fmt.Fprintf(w, "%d. %s (error: %v)\n", start+i, c.Template, c.Err)
			continue
		}
		fmt.Fprintf(w, "%d. %s (%d records, %.1f%% filled)\n", start+i, c.Template, c.Records, c.Coverage*100)
	}
	fmt.Fprintln(w)
}

// JSONCandidate represents a template in JSON output.
type JSONCandidate struct {
	Template string   `json:"template"`
	Fields   []string `json:"fields,omitempty"`
	Records  int      `json:"records"`
	Coverage float64  `json:"coverage"`
	Error    string   `json:"error,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string          `json:"file"`
	Candidates   []JSONCandidate `json:"candidates"`
	SampledLines int             `json:"sampled_lines"`
	Truncated    bool            `json:"truncated,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	output := JSONOutput{
		File:         logFile,
		SampledLines: result.SampledLines,
		Truncated:    result.Truncated,
		Candidates:   make([]JSONCandidate, 0, len(result.Candidates)),
	}

	candidates := result.Candidates
	if !opts.ShowAll && len(candidates) > 1 {
		candidates = candidates[:1] // Only show best match
	}

	for _, c := range candidates {
		jc := JSONCandidate{
			Template: c.Template,
			Fields:   c.Header,
			Records:  c.Records,
			Coverage: c.Coverage,
		}
		if c.Err != nil {
			jc.Error = c.Err.Error()
		}
		output.Candidates = append(output.Candidates, jc)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// starterConfig is the subset of the config file written by --write-config.
type starterConfig struct {
	Templates []string `yaml:"templates"`
	Logs      []string `yaml:"logs"`
	Output    struct {
		Format string `yaml:"format"`
	} `yaml:"output"`
}

func writeStarterConfig(result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	best := result.BestMatch()
	if best == nil {
		return errors.New("cannot write config: no template extracted any records")
	}

	var sc starterConfig
	sc.Templates = []string{best.Template}
	sc.Logs = []string{filepath.Join(filepath.Dir(logFile), "*"+filepath.Ext(logFile))}
	sc.Output.Format = "csv"

	data, err := yaml.Marshal(&sc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	header := fmt.Sprintf("# Generated by textfsm-parse detect from %s\n", logFile)

	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
