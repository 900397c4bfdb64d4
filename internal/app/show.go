package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints the most recent flagged steady-state segments.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show flagged segments")
	}
	defer closeStore()

	segments, err := store.ListRecentFlagged(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		fmt.Fprintln(a.Out, "no flagged segments found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Batch\tTime (UTC)\tRun\tOFP\tTest Case\tMean V\tVariance\tMode\tReasons")

	for _, s := range segments {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%.3f\t%.4f\t%s\t%s\n",
			s.BatchID,
			s.CreatedAt.UTC().Format(time.RFC3339),
			s.RunID,
			s.OFP,
			s.TestCase,
			s.MeanVoltage,
			s.Variance,
			s.Mode,
			sanitizeInline(s.FlagReasons),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
