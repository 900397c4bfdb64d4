package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.RunAnalyzed("baseline")
	r.RunAnalyzed("baseline")
	r.RunSkipped("flagging")
	r.SegmentsFlagged(3)
	r.ThresholdGroups(7)
	r.FlipsDetected(5, 2)

	if got := testutil.ToFloat64(r.runsAnalyzed.WithLabelValues("baseline")); got != 2 {
		t.Fatalf("baseline runs = %v", got)
	}
	if got := testutil.ToFloat64(r.runsSkipped.WithLabelValues("flagging")); got != 1 {
		t.Fatalf("skipped runs = %v", got)
	}
	if got := testutil.ToFloat64(r.segmentsFlagged); got != 3 {
		t.Fatalf("flagged = %v", got)
	}
	if got := testutil.ToFloat64(r.thresholdGroups); got != 7 {
		t.Fatalf("threshold groups = %v", got)
	}
	if got := testutil.ToFloat64(r.flipsDetected); got != 5 {
		t.Fatalf("flips = %v", got)
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SegmentsFlagged(1)
	if got := testutil.ToFloat64(b.segmentsFlagged); got != 0 {
		t.Fatalf("recorders share state: %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.FlipsDetected(4, 1)
	r.ObserveBatch("flips", time.Now())

	path := filepath.Join(t.TempDir(), "textfile", "busmon.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "busmon_bus_flips_total 4") {
		t.Fatalf("textfile missing flip counter:\n%s", data)
	}
	if err := r.WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
