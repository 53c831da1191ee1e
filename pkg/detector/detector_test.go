package detector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

const versionTemplate = `Value VERSION (\S+)
Value HOSTNAME (\S+)

Start
  ^Version\s+${VERSION}
  ^Hostname\s+${HOSTNAME} -> Record
`

const hostnameTemplate = `Value HOSTNAME (\S+)
Value UPTIME (.+)

Start
  ^Hostname\s+${HOSTNAME} -> Record
`

const vlanTemplate = `Value VLAN (\d+)

Start
  ^vlan\s+${VLAN} -> Record
`

const versionLog = `Version 15.2
Hostname switch1
Version 16.1
Hostname switch2
`

func setup(t *testing.T) (*Detector, string, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	paths := map[string]string{}
	for name, content := range map[string]string{
		"version.textfsm":  versionTemplate,
		"hostname.textfsm": hostnameTemplate,
		"vlan.textfsm":     vlanTemplate,
		"broken.textfsm":   "Value BROKEN\n\nStart\n",
		"switch.log":       versionLog,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		paths[name] = path
	}

	ext, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	return New(ext), dir, paths
}

func TestDetector_DetectFromFile_Ranking(t *testing.T) {
	d, _, paths := setup(t)
	templates := []string{paths["vlan.textfsm"], paths["hostname.textfsm"], paths["broken.textfsm"], paths["version.textfsm"]}

	result, err := d.DetectFromFile(context.Background(), paths["switch.log"], templates)
	if err != nil {
		t.Fatalf("DetectFromFile() error = %v", err)
	}

	if !result.HasMatch() {
		t.Fatal("Expected a match")
	}

	want := []string{"version.textfsm", "hostname.textfsm", "vlan.textfsm", "broken.textfsm"}
	for i, c := range result.Candidates {
		if filepath.Base(c.Template) != want[i] {
			t.Errorf("Candidates[%d] = %s, want %s", i, filepath.Base(c.Template), want[i])
		}
	}

	best := result.BestMatch()
	if best.Records != 2 {
		t.Errorf("Records = %d, want 2", best.Records)
	}
	if best.Coverage != 1.0 {
		t.Errorf("Coverage = %.2f, want 1.00", best.Coverage)
	}
}

func TestDetector_CoverageBreaksTies(t *testing.T) {
	d, _, paths := setup(t)

	result, err := d.DetectFromText(context.Background(), versionLog,
		[]string{paths["hostname.textfsm"], paths["version.textfsm"]})
	if err != nil {
		t.Fatalf("DetectFromText() error = %v", err)
	}

	// both extract two records; hostname leaves UPTIME empty
	if filepath.Base(result.Candidates[0].Template) != "version.textfsm" {
		t.Errorf("best = %s, want version.textfsm", result.Candidates[0].Template)
	}
	if result.Candidates[1].Coverage != 0.5 {
		t.Errorf("hostname coverage = %.2f, want 0.50", result.Candidates[1].Coverage)
	}
}

func TestDetector_BrokenTemplateReported(t *testing.T) {
	d, _, paths := setup(t)

	result, err := d.DetectFromText(context.Background(), versionLog, []string{paths["broken.textfsm"]})
	if err != nil {
		t.Fatalf("DetectFromText() error = %v", err)
	}

	if result.HasMatch() {
		t.Error("Expected no match")
	}
	if result.BestMatch() != nil {
		t.Error("BestMatch() should be nil")
	}
	if result.Candidates[0].Err == nil {
		t.Error("Expected compile error on candidate")
	}
}

func TestDetector_NoMatch(t *testing.T) {
	d, _, paths := setup(t)

	result, err := d.DetectFromText(context.Background(), "nothing to see\n", []string{paths["vlan.textfsm"]})
	if err != nil {
		t.Fatalf("DetectFromText() error = %v", err)
	}
	if result.HasMatch() {
		t.Error("Expected no match")
	}
}

func TestDetector_WithSampleSize(t *testing.T) {
	d, _, paths := setup(t)
	d = New(d.parser, WithSampleSize(2))

	result, err := d.DetectFromText(context.Background(), versionLog, []string{paths["version.textfsm"]})
	if err != nil {
		t.Fatalf("DetectFromText() error = %v", err)
	}

	if result.SampledLines != 2 {
		t.Errorf("SampledLines = %d, want 2", result.SampledLines)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true")
	}
	if result.Candidates[0].Records != 1 {
		t.Errorf("Records = %d, want 1", result.Candidates[0].Records)
	}
}

func TestDetector_WithSampleSize_Invalid(t *testing.T) {
	d := New(nil, WithSampleSize(-1))
	if d.sampleSize != DefaultSampleSize {
		t.Errorf("sampleSize = %d, want %d", d.sampleSize, DefaultSampleSize)
	}
}

func TestDetector_SampleKeepsBlankLines(t *testing.T) {
	d := New(nil, WithSampleSize(10))
	text, lines, truncated, err := d.sample("a\n\nb\n")
	if err != nil {
		t.Fatalf("sample() error = %v", err)
	}
	if text != "a\n\nb\n" || lines != 3 || truncated {
		t.Errorf("sample() = %q, %d, %v", text, lines, truncated)
	}
}

func TestDetector_DetectFromFile_NotFound(t *testing.T) {
	d, dir, paths := setup(t)

	_, err := d.DetectFromFile(context.Background(), filepath.Join(dir, "missing.log"), []string{paths["version.textfsm"]})
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDetector_Cancelled(t *testing.T) {
	d, _, paths := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.DetectFromText(ctx, versionLog, []string{paths["version.textfsm"]})
	if err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Errorf("DetectFromText() error = %v, want context canceled", err)
	}
}
