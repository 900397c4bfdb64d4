package storage

import (
	"context"
	"errors"
	"testing"

	"busmon-analytics/internal/config"
)

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if _, err := s.SaveSegmentBatch(ctx, "x.csv", nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("SaveSegmentBatch err = %v", err)
	}
	if _, err := s.SaveFlipBatch(ctx, "x.csv", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("SaveFlipBatch err = %v", err)
	}
	if _, err := s.ListRecentFlagged(ctx, 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ListRecentFlagged err = %v", err)
	}
	if _, err := s.CountFlips(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("CountFlips err = %v", err)
	}
	s.Close()
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), config.DatabaseConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewPoolRejectsBadDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz"}); err == nil {
		t.Fatal("expected parse error")
	}
}
