package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"busmon-analytics/internal/alerting"
	"busmon-analytics/internal/config"
	"busmon-analytics/internal/report"
	"busmon-analytics/internal/table"
)

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n alerting.Notification) error {
	c.notes = append(c.notes, n)
	return nil
}

func testApp(t *testing.T) (*App, *bytes.Buffer, *captureNotifier) {
	t.Helper()
	cfg := &config.Config{
		Analysis: config.AnalysisConfig{
			VoltageColumn:      "voltage_28v_dc1_cal",
			Workers:            2,
			MinBaselineSamples: 3,
			SpreadFactor:       0.5,
			FixedThresholds:    map[string]float64{"variance": 1.5, "std": 2.0, "abs_slope": 0.5, "iqr": 1.0},
		},
		Flips:  config.FlipsConfig{ThresholdMS: 100},
		Scan:   config.ScanConfig{Needle: "27T", SourcesSuffix: "_Sources.csv", FlaggedSaves: []int{3, 12, 17}},
		Output: config.OutputConfig{Dir: filepath.Join(t.TempDir(), "output")},
	}
	var out bytes.Buffer
	notifier := &captureNotifier{}
	a := NewApp(cfg, zerolog.Nop()).WithNotifier(notifier)
	a.Out = &out
	return a, &out, notifier
}

func writeInput(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func voltageInput(t *testing.T) string {
	lines := []string{"run_id,ofp,test_case,dc_folder,predicted_status,voltage_28v_dc1_cal"}
	for _, run := range []string{"r1", "r2", "r3"} {
		for i := 0; i < 4; i++ {
			lines = append(lines, run+",ofp1,tc1,DC1,Steady State,24")
		}
	}
	for _, v := range []string{"20", "22", "24", "26", "28"} {
		lines = append(lines, "r4,ofp1,tc1,DC1,Steady State,"+v)
	}
	lines = append(lines, "r4,ofp1,tc1,DC1,Stabilizing,19")
	return writeInput(t, "runs.csv", lines...)
}

func TestAnalyzeVoltage(t *testing.T) {
	a, out, notifier := testApp(t)
	res, err := a.AnalyzeVoltage(context.Background(), VoltageOptions{Inputs: []string{voltageInput(t)}})
	if err != nil {
		t.Fatalf("AnalyzeVoltage: %v", err)
	}
	if len(res.Flagged) != 1 || res.Flagged[0].RunID != "r4" || res.Flagged[0].Mode != "dynamic" {
		t.Fatalf("expected r4 flagged dynamically, got %+v", res.Flagged)
	}
	for _, name := range []string{report.AllResultsFile, report.FlaggedFile, report.SummaryFile, report.DCComparisonFile, report.DynamicThresholdsFile, report.RunFlagsFile} {
		if _, err := os.Stat(filepath.Join(a.Config.Output.Dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if len(notifier.notes) != 1 || notifier.notes[0].Flagged != 1 || notifier.notes[0].Command != "voltage" {
		t.Fatalf("notifications %+v", notifier.notes)
	}
	if !strings.Contains(out.String(), "flagged: 1") {
		t.Fatalf("summary output %q", out.String())
	}
}

func TestAnalyzeVoltageMissingColumn(t *testing.T) {
	a, _, notifier := testApp(t)
	path := writeInput(t, "bad.csv", "run_id,predicted_status,voltage_other", "r1,Steady State,24")
	_, err := a.AnalyzeVoltage(context.Background(), VoltageOptions{Inputs: []string{path}})
	var missing *table.MissingColumnsError
	if !errors.As(err, &missing) || missing.Columns[0] != "voltage_28v_dc1_cal" {
		t.Fatalf("expected missing voltage column, got %v", err)
	}
	if _, err := os.Stat(a.Config.Output.Dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("no output should be written after a structural error")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("no notification expected")
	}
}

func TestDetectFlipsAndGaps(t *testing.T) {
	a, out, notifier := testApp(t)
	path := writeInput(t, "events.csv",
		"unit_id,station,save,bus,timestamp,decoded_description",
		"u1,s1,3,A,0.000,(1-[27T]-2)",
		"u1,s1,3,B,0.050,(1-[27T]-2)",
		"u1,s1,3,A,0.300,other",
		"u2,s1,3,A,1.0,X",
	)

	res, err := a.DetectFlips(context.Background(), FlipOptions{Inputs: []string{path}})
	if err != nil {
		t.Fatalf("DetectFlips: %v", err)
	}
	if len(res.Flips) != 1 || res.Flips[0].MsgType != "27T" {
		t.Fatalf("flips %+v", res.Flips)
	}
	if _, err := os.Stat(filepath.Join(a.Config.Output.Dir, report.FlipSummaryFile)); err != nil {
		t.Fatalf("flip summary not written: %v", err)
	}
	if len(notifier.notes) != 1 || notifier.notes[0].Flagged != 1 {
		t.Fatalf("notifications %+v", notifier.notes)
	}
	if !strings.Contains(out.String(), "detected 1 bus flips") {
		t.Fatalf("summary output %q", out.String())
	}

	gaps, err := a.Gaps(context.Background(), GapOptions{Inputs: []string{path}})
	if err != nil {
		t.Fatalf("Gaps: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Gaps.Max != 250 {
		t.Fatalf("gaps %+v", gaps)
	}
}

func TestCountAndSources(t *testing.T) {
	a, out, _ := testApp(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("decoded_description\n27T\n27T x\nno\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Unit_Sources.csv"), []byte("station,save\nS1,17\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	counts, err := a.Count(context.Background(), ScanOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if counts.Total != 2 {
		t.Fatalf("total = %d", counts.Total)
	}

	sources, err := a.Sources(context.Background(), ScanOptions{Dir: dir, OutputDir: a.Config.Output.Dir})
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if sources.FlaggedCount() != 1 {
		t.Fatalf("flagged = %d", sources.FlaggedCount())
	}
	if !strings.Contains(out.String(), "FLAGGED Unit") {
		t.Fatalf("output %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(a.Config.Output.Dir, report.SourcesFile)); err != nil {
		t.Fatalf("sources summary not written: %v", err)
	}
}

func TestShowRequiresDatabase(t *testing.T) {
	a, _, _ := testApp(t)
	if err := a.Show(context.Background(), ShowOptions{Limit: 5}); err == nil {
		t.Fatal("show without a database should fail")
	}
}

func TestTestNotify(t *testing.T) {
	a, _, notifier := testApp(t)
	if err := a.TestNotify(context.Background()); err == nil {
		t.Fatal("expected error while alerting is disabled")
	}

	a.Config.Alerting.Enabled = true
	if err := a.TestNotify(context.Background()); err != nil {
		t.Fatalf("TestNotify: %v", err)
	}
	if len(notifier.notes) != 1 || notifier.notes[0].Command != "notify-test" {
		t.Fatalf("notifications %+v", notifier.notes)
	}
}
