// Package scan walks directories of bus-monitor exports for quick inventory
// checks: payload substring counts and save-number flags in source listings.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"busmon-analytics/internal/table"
)

// DescriptionColumn is searched by the substring counter.
const DescriptionColumn = "decoded_description"

// DefaultNeedle is the payload marker counted when none is configured.
const DefaultNeedle = "27T"

// FileCount is the per-file outcome of a count. Err is set when the file could
// not be read; Count is then zero.
type FileCount struct {
	File  string
	Count int
	Err   error
}

// CountReport totals a directory scan.
type CountReport struct {
	Needle  string
	Files   []FileCount
	Skipped []string
	Total   int
}

// Counter counts rows whose description contains a needle.
type Counter struct {
	needle string
	logger zerolog.Logger
}

// NewCounter returns a counter for needle, or DefaultNeedle when empty.
func NewCounter(needle string, logger zerolog.Logger) *Counter {
	if needle == "" {
		needle = DefaultNeedle
	}
	return &Counter{
		needle: needle,
		logger: logger.With().Str("component", "substring_counter").Logger(),
	}
}

// CountDir scans every *.csv file directly inside dir in name order.
func (c *Counter) CountDir(dir string) (*CountReport, error) {
	files, err := listFiles(dir, "*.csv")
	if err != nil {
		return nil, err
	}

	report := &CountReport{Needle: c.needle}
	for _, path := range files {
		name := filepath.Base(path)
		n, err := c.CountFile(path)
		var missing *table.MissingColumnsError
		switch {
		case errors.As(err, &missing):
			c.logger.Warn().Str("file", name).Msg("no decoded_description column, skipping")
			report.Skipped = append(report.Skipped, name)
			continue
		case err != nil:
			c.logger.Error().Str("file", name).Err(err).Msg("count failed")
			report.Files = append(report.Files, FileCount{File: name, Err: err})
			continue
		}
		c.logger.Debug().Str("file", name).Int("count", n).Msg("file counted")
		report.Files = append(report.Files, FileCount{File: name, Count: n})
		report.Total += n
	}

	c.logger.Info().
		Str("needle", c.needle).
		Int("files", len(report.Files)).
		Int("skipped", len(report.Skipped)).
		Int("total", report.Total).
		Msg("substring count complete")
	return report, nil
}

// CountFile counts matching rows of a single file.
func (c *Counter) CountFile(path string) (int, error) {
	t, err := table.Open(path)
	if err != nil {
		return 0, err
	}
	if err := t.Require(DescriptionColumn); err != nil {
		return 0, err
	}
	count := 0
	for _, row := range t.Rows {
		if strings.Contains(t.Get(row, DescriptionColumn), c.needle) {
			count++
		}
	}
	return count, nil
}

func listFiles(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}
