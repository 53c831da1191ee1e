package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/ledger"
	"github.com/riceball-k/textfsm-parse-to-csv/internal/logging"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/config"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/output"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/report"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/webhook"
)

func TestRunParse_WritesEveryPair(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	stdout, _, err := execute(t, cmd, "-q",
		"-t", filepath.Join(f.templates, "*.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	if ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", ExitCode)
	}
	if got := len(f.outputs(t, ".csv")); got != 4 {
		t.Errorf("wrote %d CSV files, want 4", got)
	}
	want := "textfsm-parse: 2 log files, 2 templates, 4 artifacts, 0 failures\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestRunParse_CSVContent(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd, "-q",
		"-t", filepath.Join(f.templates, "interface.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "switch1.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	files := f.outputs(t, ".csv")
	if len(files) != 1 {
		t.Fatalf("wrote %d files, want 1", len(files))
	}
	if !strings.HasPrefix(filepath.Base(files[0]), "switch1_interface_") {
		t.Errorf("artifact name = %s", filepath.Base(files[0]))
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	want := "INTERFACE,STATUS\nGi0/1,up\nGi0/2,down\n"
	if string(data) != want {
		t.Errorf("CSV = %q, want %q", data, want)
	}
}

func TestRunParse_JSONFlag(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd, "-q", "-j",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "switch1.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	files := f.outputs(t, ".json")
	if len(files) != 1 {
		t.Fatalf("wrote %d JSON files, want 1", len(files))
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("artifact is not JSON: %v", err)
	}
	if len(rows) != 1 || rows[0]["HOSTNAME"] != "switch1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRunParse_BesideLogFile(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd, "-q",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		filepath.Join(f.logs, "switch1.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(f.logs, "switch1_version_*.csv"))
	if len(matches) != 1 {
		t.Errorf("expected one artifact beside the log file, got %v", matches)
	}
}

func TestRunParse_MissingOutputDir(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd,
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", filepath.Join(f.dir, "missing"),
		filepath.Join(f.logs, "switch1.log"))

	var dirErr *output.DirNotFoundError
	if !errors.As(err, &dirErr) {
		t.Fatalf("RunParse() error = %v, want *DirNotFoundError", err)
	}
}

func TestRunParse_InvalidPattern(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd,
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "missing.log"))
	if err == nil {
		t.Fatal("Expected error for a missing log file")
	}
	if !strings.Contains(err.Error(), "missing.log") {
		t.Errorf("error should name the file: %v", err)
	}
	if len(f.outputs(t, "")) != 0 {
		t.Error("nothing should be written")
	}
}

func TestRunParse_TemplateErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "templates/broken.textfsm", brokenTemplate)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd,
		"-t", filepath.Join(f.templates, "broken.textfsm"),
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))

	var tmplErr *extract.TemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("RunParse() error = %v, want *TemplateError", err)
	}
	if !strings.Contains(err.Error(), "broken.textfsm") {
		t.Errorf("error should name the template: %v", err)
	}
}

func TestRunParse_TemplateErrorSkip(t *testing.T) {
	f := newFixture(t)
	f.write(t, "templates/broken.textfsm", brokenTemplate)
	cmd, _ := newParseCommand()

	stdout, _, err := execute(t, cmd, "--on-template-error", "skip",
		"-t", filepath.Join(f.templates, "*.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	if ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", ExitCode)
	}
	if got := len(f.outputs(t, ".csv")); got != 4 {
		t.Errorf("wrote %d CSV files, want 4", got)
	}
	if !strings.Contains(stdout, "template broken.textfsm skipped") {
		t.Errorf("skipped template not reported:\n%s", stdout)
	}
}

func TestRunParse_CancelledChooser(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"text", nil},
		{"quiet", []string{"-q"}},
		{"json report", []string{"--report", "json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cmd, opts := newParseCommand()
			opts.Chooser = &fakeChooser{}

			args := append([]string{"-t", filepath.Join(f.templates, "version.textfsm"), "-o", f.out}, tt.args...)
			stdout, _, err := execute(t, cmd, args...)
			if err != nil {
				t.Fatalf("RunParse() error = %v", err)
			}

			if ExitCode != 0 {
				t.Errorf("ExitCode = %d, want 0", ExitCode)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want nothing after cancellation", stdout)
			}
			if len(f.outputs(t, "")) != 0 {
				t.Error("nothing should be written after cancellation")
			}
		})
	}
}

func TestRunParse_TerminalChooserDir(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()
	// Enter confirms the item under the cursor, the first log in the listing.
	cmd.SetIn(strings.NewReader("\r"))

	stdout, stderr, err := execute(t, cmd, "-q",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		"--chooser-dir", f.logs)
	if err != nil {
		t.Fatalf("RunParse() error = %v\nstderr: %s", err, stderr)
	}

	files := f.outputs(t, ".csv")
	if len(files) != 1 || !strings.HasPrefix(filepath.Base(files[0]), "switch1_version_") {
		t.Errorf("outputs = %v, want one switch1_version artifact", files)
	}
	if strings.Contains(stdout, "switch1.log") {
		t.Errorf("chooser drew on stdout: %q", stdout)
	}
}

func TestRunParse_ChooserSelection(t *testing.T) {
	f := newFixture(t)
	cmd, opts := newParseCommand()
	opts.Chooser = &fakeChooser{paths: []string{filepath.Join(f.logs, "switch2.log")}}

	_, _, err := execute(t, cmd, "-q", "-t", filepath.Join(f.templates, "version.textfsm"), "-o", f.out)
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	files := f.outputs(t, ".csv")
	if len(files) != 1 || !strings.HasPrefix(filepath.Base(files[0]), "switch2_version_") {
		t.Errorf("artifacts = %v", files)
	}
}

func TestRunParse_ConfigFile(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.dir, "other")
	if err := os.Mkdir(other, 0755); err != nil {
		t.Fatal(err)
	}
	configPath := f.write(t, "parse.yaml", `templates:
  - `+filepath.Join(f.templates, "version.textfsm")+`
logs:
  - `+filepath.Join(f.logs, "*.log")+`
output:
  dir: `+f.out+`
  format: json
`)
	cmd, _ := newParseCommand()

	// -o overrides output.dir from the file
	_, _, err := execute(t, cmd, "-q", "-c", configPath, "-o", other)
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(other, "*.json"))
	if len(matches) != 2 {
		t.Errorf("wrote %d JSON files to the override dir, want 2", len(matches))
	}
	if len(f.outputs(t, "")) != 0 {
		t.Error("config output dir should not be used")
	}
}

func TestRunParse_JSONReport(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	stdout, _, err := execute(t, cmd, "--report", "json",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	var rep report.Report
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, stdout)
	}
	if rep.Summary.Artifacts != 2 || rep.Summary.Records != 2 {
		t.Errorf("summary = %+v", rep.Summary)
	}
}

func TestRunParse_Ledger(t *testing.T) {
	f := newFixture(t)
	dbPath := filepath.Join(f.dir, "history.db")
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd, "-q", "--ledger", dbPath,
		"-t", filepath.Join(f.templates, "*.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	ctx := context.Background()
	led, err := ledger.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	defer led.Close()

	runs, err := led.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].State != "done" || runs[0].Artifacts != 4 || runs[0].LogFiles != 2 {
		t.Errorf("run = %+v", runs[0])
	}

	artifacts, err := led.Artifacts(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("Artifacts() error = %v", err)
	}
	if len(artifacts) != 4 {
		t.Errorf("got %d artifacts, want 4", len(artifacts))
	}
}

func TestRunParse_WebhookFlags(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var payload webhook.Payload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cmd, _ := newParseCommand()
	_, _, err := execute(t, cmd, "-q",
		"--webhook-url", server.URL,
		"--webhook-token", "secret",
		"--webhook-trigger", "always",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		"-o", f.out,
		filepath.Join(f.logs, "*.log"))
	if err != nil {
		t.Fatalf("RunParse() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if payload.Event != "run.completed" {
		t.Errorf("event = %q, want run.completed", payload.Event)
	}
	if payload.Report == nil || payload.Report.Summary.Artifacts != 2 {
		t.Errorf("payload report = %+v", payload.Report)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestRunParse_InvalidWebhookTrigger(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newParseCommand()

	_, _, err := execute(t, cmd,
		"--webhook-url", "http://localhost:1",
		"--webhook-trigger", "sometimes",
		"-t", filepath.Join(f.templates, "version.textfsm"),
		filepath.Join(f.logs, "switch1.log"))
	if err == nil || !strings.Contains(err.Error(), "--webhook-trigger") {
		t.Errorf("RunParse() error = %v, want trigger error", err)
	}
}

func TestApplyTo(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Templates = []string{"from-config.textfsm"}
	cfg.Logs = []string{"from-config.log"}

	opts := &ParseOptions{
		GlobalOptions:   &GlobalOptions{},
		OutputDir:       dir,
		JSON:            true,
		OnTemplateError: "skip",
		Encoding:        "shift_jis",
		Report:          "json",
		Ledger:          ":memory:",
		ChooserDir:      dir,
	}
	if err := opts.applyTo(cfg, []string{"a.log"}); err != nil {
		t.Fatalf("applyTo() error = %v", err)
	}

	if cfg.Templates[0] != "from-config.textfsm" {
		t.Errorf("Templates = %v, config value should be kept without -t", cfg.Templates)
	}
	if len(cfg.Logs) != 1 || cfg.Logs[0] != "a.log" {
		t.Errorf("Logs = %v", cfg.Logs)
	}
	if cfg.Output.Dir != dir || cfg.Output.Format != "json" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.OnTemplateError != "skip" || cfg.Encoding != "shift_jis" || cfg.Report != "json" || cfg.Ledger != ":memory:" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Chooser.Dir != dir {
		t.Errorf("Chooser.Dir = %q, want %q", cfg.Chooser.Dir, dir)
	}
}

func TestApplyTo_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts ParseOptions
	}{
		{"policy", ParseOptions{OnTemplateError: "retry"}},
		{"encoding", ParseOptions{Encoding: "klingon"}},
		{"report", ParseOptions{Report: "xml"}},
		{"chooser dir", ParseOptions{ChooserDir: "/nonexistent/logs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.GlobalOptions = &GlobalOptions{}
			if err := opts.applyTo(config.DefaultConfig(), nil); err == nil {
				t.Error("applyTo() should fail")
			}
		})
	}
}

func TestCollectWebhooks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Webhooks = []config.WebhookConfig{{Name: "ops", URL: "https://example.com/hook", Trigger: webhook.TriggerAlways}}

	got, err := collectWebhooks(cfg, &ParseOptions{})
	if err != nil {
		t.Fatalf("collectWebhooks() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d webhooks, want 1", len(got))
	}

	got, err = collectWebhooks(cfg, &ParseOptions{WebhookURL: "https://cli.example.com", WebhookToken: "tok"})
	if err != nil {
		t.Fatalf("collectWebhooks() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(got))
	}
	cli := got[1]
	if cli.Name != "cli" || cli.Token != "tok" || cli.Trigger != webhook.TriggerOnFailures || cli.Timeout != config.DefaultWebhookTimeout {
		t.Errorf("cli webhook = %+v", cli)
	}
}

func TestSendWebhooks_Triggers(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhooks := []config.WebhookConfig{
		{Name: "always", URL: server.URL + "/always", Trigger: webhook.TriggerAlways},
		{Name: "failures", URL: server.URL + "/failures", Trigger: webhook.TriggerOnFailures},
		{Name: "never", URL: server.URL + "/never", Trigger: webhook.TriggerNever},
	}

	clean := &report.Report{Summary: report.Summary{State: "done"}}
	failed := &report.Report{Summary: report.Summary{State: "done", Failures: 1}}
	aborted := &report.Report{Summary: report.Summary{State: "aborted"}}

	ctx := context.Background()
	for _, rep := range []*report.Report{clean, failed, aborted} {
		sendWebhooks(ctx, webhooks, rep, logging.Discard())
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["/always"] != 2 {
		t.Errorf("always webhook hit %d times, want 2", hits["/always"])
	}
	if hits["/failures"] != 1 {
		t.Errorf("on_failures webhook hit %d times, want 1", hits["/failures"])
	}
	if hits["/never"] != 0 {
		t.Errorf("never webhook hit %d times, want 0", hits["/never"])
	}
}

func TestSendWebhooks_ServerErrorContinues(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rep := &report.Report{Summary: report.Summary{State: "done", Failures: 1}}
	webhooks := []config.WebhookConfig{
		{Name: "first", URL: server.URL, Trigger: webhook.TriggerAlways},
		{Name: "second", URL: server.URL, Trigger: webhook.TriggerAlways},
	}
	sendWebhooks(context.Background(), webhooks, rep, logging.Discard())

	mu.Lock()
	defer mu.Unlock()
	if hits != 2 {
		t.Errorf("server hit %d times, want 2", hits)
	}
}

func TestCreateFormatter(t *testing.T) {
	for _, name := range []string{"text", "json"} {
		f, err := createFormatter(name, &GlobalOptions{Quiet: true})
		if err != nil {
			t.Fatalf("createFormatter(%q) error = %v", name, err)
		}
		if f.Name() != name {
			t.Errorf("Name() = %q, want %q", f.Name(), name)
		}
	}

	if _, err := createFormatter("xml", &GlobalOptions{}); err == nil {
		t.Error("createFormatter(xml) should fail")
	}
}
