package httpdl

import "testing"

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		ranges     bool
		workers    int
		wantChunks int
		wantRanged bool
	}{
		{"no ranges", 50 * MinChunkSize, false, 8, 1, false},
		{"below parallel threshold", 4 * MinChunkSize, true, 8, 1, false},
		{"single worker", 50 * MinChunkSize, true, 1, 1, false},
		{"unknown size", 0, true, 8, 1, false},
		{"ten million bytes four workers", 10_000_000, true, 4, 4, true},
		{"capped by min chunk size", 6 * MinChunkSize, true, 16, 6, true},
		{"uneven split", 10*MinChunkSize + 3, true, 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanChunks(tt.total, tt.ranges, tt.workers, 5*MinChunkSize)
			if len(plan.Chunks) != tt.wantChunks {
				t.Fatalf("expected %d chunks, got %d (%s)", tt.wantChunks, len(plan.Chunks), plan)
			}
			if plan.Ranged != tt.wantRanged {
				t.Errorf("expected ranged=%v, got %v", tt.wantRanged, plan.Ranged)
			}
			if tt.workers > 0 && len(plan.Chunks) > tt.workers {
				t.Errorf("plan has %d chunks for %d workers", len(plan.Chunks), tt.workers)
			}
			checkCoverage(t, plan)
		})
	}
}

func TestPlanChunksTenMillion(t *testing.T) {
	plan := PlanChunks(10_000_000, true, 4, 5*MinChunkSize)
	want := []Chunk{
		{0, 0, 2_499_999},
		{1, 2_500_000, 4_999_999},
		{2, 5_000_000, 7_499_999},
		{3, 7_500_000, 9_999_999},
	}
	for i, c := range plan.Chunks {
		if c != want[i] {
			t.Errorf("chunk %d: expected %+v, got %+v", i, want[i], c)
		}
	}
}

func TestPlanChunksUnknownSizeIsOpenEnded(t *testing.T) {
	plan := PlanChunks(0, false, 4, 0)
	if got := plan.Chunks[0]; got.End != -1 || got.Size() != -1 {
		t.Errorf("expected open-ended chunk, got %+v", got)
	}
}

// checkCoverage asserts the chunks tile [0, total) without gaps or overlap.
func checkCoverage(t *testing.T, plan ChunkPlan) {
	t.Helper()
	if plan.TotalSize <= 0 {
		return
	}
	var next, sum int64
	for i, c := range plan.Chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Start != next {
			t.Errorf("chunk %d starts at %d, expected %d", i, c.Start, next)
		}
		if c.End < c.Start {
			t.Errorf("chunk %d is empty: %+v", i, c)
		}
		next = c.End + 1
		sum += c.Size()
	}
	if next != plan.TotalSize || sum != plan.TotalSize {
		t.Errorf("chunks cover %d bytes ending at %d, expected %d", sum, next, plan.TotalSize)
	}
}

func TestChunkFileName(t *testing.T) {
	if got := ChunkFileName("/tmp/out.iso", 3); got != "/tmp/out.iso.part3" {
		t.Errorf("unexpected chunk file name %q", got)
	}
}
