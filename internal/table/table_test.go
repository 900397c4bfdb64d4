package table

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadAndGet(t *testing.T) {
	src := "\ufeffrun_id, bus ,value\nr1,A,1.5\nr2,B\n"
	tbl, err := Read("mem", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d", tbl.Len())
	}
	if !tbl.Has("run_id") || !tbl.Has("bus") {
		t.Fatalf("header not normalised: %v", tbl.Columns)
	}
	if got := tbl.Get(tbl.Rows[0], "value"); got != "1.5" {
		t.Fatalf("value = %q", got)
	}
	if got := tbl.Get(tbl.Rows[1], "value"); got != "" {
		t.Fatalf("short row should give empty cell, got %q", got)
	}
	if _, ok := tbl.Lookup(tbl.Rows[0], "dc1_state"); ok {
		t.Fatal("absent column reported present")
	}
}

func TestRequireNamesMissingColumns(t *testing.T) {
	tbl, err := Read("events.csv", strings.NewReader("unit_id,bus\n1,A\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	err = tbl.Require("unit_id", "station", "timestamp")
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if strings.Join(missing.Columns, ",") != "station,timestamp" {
		t.Fatalf("missing = %v", missing.Columns)
	}
	if !strings.Contains(err.Error(), "events.csv") {
		t.Fatalf("error should name the source: %v", err)
	}
}

func TestReadEmptyFile(t *testing.T) {
	if _, err := Read("empty.csv", strings.NewReader("")); err == nil {
		t.Fatal("empty input should fail")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tbl.Source != path || tbl.Len() != 1 {
		t.Fatalf("unexpected table %+v", tbl)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("missing file should fail")
	}
}
