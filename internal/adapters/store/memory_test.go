package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
)

func record(i int, verdict core.Verdict) *core.ScanRecord {
	return &core.ScanRecord{
		Subject:           fmt.Sprintf("subject %d", i),
		Sender:            "a@example.com",
		SenderDomain:      "example.com",
		Verdict:           verdict,
		ConfidencePercent: 90,
		Source:            "api",
		ScannedAt:         time.Date(2026, 8, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestMemoryStoreSaveAndRecent(t *testing.T) {
	s := NewMemoryStore(10, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, record(i, core.VerdictSafe)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].Subject != "subject 4" || recent[2].Subject != "subject 2" {
		t.Errorf("order wrong: %q .. %q", recent[0].Subject, recent[2].Subject)
	}
	for _, r := range recent {
		if r.ID == "" {
			t.Error("record saved without an ID")
		}
	}
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemoryStore(3, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, record(i, core.VerdictSafe)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3 after eviction", len(recent))
	}
	if recent[len(recent)-1].Subject != "subject 2" {
		t.Errorf("oldest surviving record = %q, want subject 2", recent[len(recent)-1].Subject)
	}
}

func TestMemoryStoreCountByVerdict(t *testing.T) {
	s := NewMemoryStore(10, zap.NewNop())
	ctx := context.Background()

	_ = s.Save(ctx, record(0, core.VerdictSafe))
	_ = s.Save(ctx, record(1, core.VerdictSafe))
	_ = s.Save(ctx, record(2, core.VerdictPhishing))

	counts, err := s.CountByVerdict(ctx)
	if err != nil {
		t.Fatalf("CountByVerdict: %v", err)
	}
	if counts[core.VerdictSafe] != 2 || counts[core.VerdictPhishing] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestMemoryStoreSaveCopiesRecord(t *testing.T) {
	s := NewMemoryStore(10, zap.NewNop())
	ctx := context.Background()

	r := record(0, core.VerdictSafe)
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r.Subject = "mutated"

	recent, _ := s.Recent(ctx, 1)
	if recent[0].Subject != "subject 0" {
		t.Errorf("stored record aliased caller memory: %q", recent[0].Subject)
	}
}
