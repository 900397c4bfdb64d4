package scan

import (
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"busmon-analytics/internal/table"
)

// DefaultSourcesSuffix marks source listing files.
const DefaultSourcesSuffix = "_Sources.csv"

// DefaultFlaggedSaves are the save numbers that flag a listing.
var DefaultFlaggedSaves = []int{3, 12, 17}

// SourceFile describes one listing. Stations and Saves keep first-seen order.
type SourceFile struct {
	Name         string
	File         string
	Stations     []string
	Saves        []string
	Flagged      bool
	FlaggedSaves []int
}

// FileError is a listing that could not be read.
type FileError struct {
	File string
	Err  error
}

// SourcesReport is the outcome of a sources scan.
type SourcesReport struct {
	Files   []SourceFile
	Skipped []string
	Failed  []FileError
}

// FlaggedCount returns how many listings were flagged.
func (r *SourcesReport) FlaggedCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Flagged {
			n++
		}
	}
	return n
}

// SaveFlagger inspects source listings for watched save numbers.
type SaveFlagger struct {
	suffix  string
	watched map[int]struct{}
	logger  zerolog.Logger
}

// NewSaveFlagger builds a flagger. Empty arguments fall back to the defaults.
func NewSaveFlagger(suffix string, saves []int, logger zerolog.Logger) *SaveFlagger {
	if suffix == "" {
		suffix = DefaultSourcesSuffix
	}
	if len(saves) == 0 {
		saves = DefaultFlaggedSaves
	}
	watched := make(map[int]struct{}, len(saves))
	for _, s := range saves {
		watched[s] = struct{}{}
	}
	return &SaveFlagger{
		suffix:  suffix,
		watched: watched,
		logger:  logger.With().Str("component", "sources_flagger").Logger(),
	}
}

// ScanDir inspects every listing in dir in name order.
func (f *SaveFlagger) ScanDir(dir string) (*SourcesReport, error) {
	files, err := listFiles(dir, "*"+f.suffix)
	if err != nil {
		return nil, err
	}

	report := &SourcesReport{}
	for _, path := range files {
		name := filepath.Base(path)
		t, err := table.Open(path)
		if err != nil {
			f.logger.Error().Str("file", name).Err(err).Msg("read failed")
			report.Failed = append(report.Failed, FileError{File: name, Err: err})
			continue
		}
		if err := t.Require("station", "save"); err != nil {
			f.logger.Warn().Str("file", name).Err(err).Msg("listing skipped")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		sf := f.inspect(t)
		sf.File = name
		sf.Name = strings.TrimSuffix(name, f.suffix)
		if sf.Flagged {
			f.logger.Warn().Str("name", sf.Name).Ints("saves", sf.FlaggedSaves).Msg("listing contains watched saves")
		}
		report.Files = append(report.Files, sf)
	}

	f.logger.Info().
		Int("files", len(report.Files)).
		Int("flagged", report.FlaggedCount()).
		Msg("sources scan complete")
	return report, nil
}

func (f *SaveFlagger) inspect(t *table.Table) SourceFile {
	var sf SourceFile
	seenStation := map[string]bool{}
	seenSave := map[string]bool{}
	hits := map[int]bool{}
	for _, row := range t.Rows {
		if st := t.Get(row, "station"); !seenStation[st] {
			seenStation[st] = true
			sf.Stations = append(sf.Stations, st)
		}
		save := t.Get(row, "save")
		if seenSave[save] {
			continue
		}
		seenSave[save] = true
		sf.Saves = append(sf.Saves, save)
		if n, ok := saveNumber(save); ok {
			if _, watched := f.watched[n]; watched && !hits[n] {
				hits[n] = true
				sf.FlaggedSaves = append(sf.FlaggedSaves, n)
			}
		}
	}
	sort.Ints(sf.FlaggedSaves)
	sf.Flagged = len(sf.FlaggedSaves) > 0
	return sf
}

// saveNumber reads integral save values, accepting "12" as well as "12.0".
func saveNumber(raw string) (int, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
