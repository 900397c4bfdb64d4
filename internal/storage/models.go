package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch is one persisted command execution.
type Batch struct {
	ID        int64
	Command   string
	Source    string
	CreatedAt time.Time
}

// SegmentRow is a persisted (run, label) record of a voltage analysis.
type SegmentRow struct {
	RunID         string
	OFP           string
	TestCase      string
	UnitID        string
	Station       string
	Save          string
	TestRun       string
	DCFolder      string
	Label         string
	VoltageColumn string
	Points        int
	MeanVoltage   float64
	Std           float64
	Variance      float64
	IQR           float64
	AbsSlope      float64
	RSquared      float64
	Mode          string
	Flagged       bool
	FlagReasons   string
}

// ThresholdRow is one derived (ofp, test case, metric) bound pair.
type ThresholdRow struct {
	OFP      string
	TestCase string
	Metric   string
	Min      float64
	Max      float64
}

// FlipRow is a persisted bus flip. Timestamps are seconds.
type FlipRow struct {
	UnitID        string
	Station       string
	Save          string
	Transition    string
	MsgType       string
	TimestampBusA decimal.Decimal
	TimestampBusB decimal.Decimal
	GapMS         decimal.Decimal
	Description   string
}

// FlaggedSegment is a flagged row joined with its batch, as listed by show.
type FlaggedSegment struct {
	BatchID     int64
	CreatedAt   time.Time
	RunID       string
	OFP         string
	TestCase    string
	Label       string
	MeanVoltage float64
	Variance    float64
	Mode        string
	FlagReasons string
}
