package httpdl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeChunks(t *testing.T, outputPath string, plan ChunkPlan, payload []byte) {
	t.Helper()
	// Reverse order mimics chunks finishing out of order
	for i := len(plan.Chunks) - 1; i >= 0; i-- {
		c := plan.Chunks[i]
		if err := os.WriteFile(ChunkFileName(outputPath, c.Index), payload[c.Start:c.End+1], 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAssembleInIndexOrder(t *testing.T) {
	payload := testPayload(int(10 * MinChunkSize))
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := PlanChunks(int64(len(payload)), true, 4, 0)
	writeChunks(t, outputPath, plan, payload)
	// Shuffled plan order must not change the output
	plan.Chunks[0], plan.Chunks[3] = plan.Chunks[3], plan.Chunks[0]

	if err := Assemble(plan, outputPath, AssembleOptions{}); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	got, _ := os.ReadFile(outputPath)
	if !bytes.Equal(got, payload) {
		t.Fatal("assembled output does not match payload")
	}
	for _, c := range plan.Chunks {
		if _, err := os.Stat(ChunkFileName(outputPath, c.Index)); !os.IsNotExist(err) {
			t.Errorf("chunk file %d was not removed", c.Index)
		}
	}
}

func TestAssembleIgnoresOversizeChunkTail(t *testing.T) {
	payload := testPayload(int(4 * MinChunkSize))
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := PlanChunks(int64(len(payload)), true, 2, 0)
	writeChunks(t, outputPath, plan, payload)
	f, err := os.OpenFile(ChunkFileName(outputPath, 0), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("garbage"))
	f.Close()

	if err := Assemble(plan, outputPath, AssembleOptions{}); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	got, _ := os.ReadFile(outputPath)
	if !bytes.Equal(got, payload) {
		t.Fatal("oversize chunk file leaked into output")
	}
}

func TestAssembleDeferredCleanupKeepsChunksOnFailure(t *testing.T) {
	payload := testPayload(int(4 * MinChunkSize))
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := PlanChunks(int64(len(payload)), true, 4, 0)
	writeChunks(t, outputPath, plan, payload)
	os.Remove(ChunkFileName(outputPath, 2))

	err := Assemble(plan, outputPath, AssembleOptions{DeferCleanup: true})
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected MergeError, got %v", err)
	}
	for _, idx := range []int{0, 1, 3} {
		if _, err := os.Stat(ChunkFileName(outputPath, idx)); err != nil {
			t.Errorf("chunk file %d should survive a failed deferred merge", idx)
		}
	}
}

func TestAssembleEagerCleanupRemovesCopiedChunks(t *testing.T) {
	payload := testPayload(int(4 * MinChunkSize))
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := PlanChunks(int64(len(payload)), true, 4, 0)
	writeChunks(t, outputPath, plan, payload)
	os.Remove(ChunkFileName(outputPath, 2))

	if err := Assemble(plan, outputPath, AssembleOptions{}); err == nil {
		t.Fatal("expected merge failure")
	}
	for _, idx := range []int{0, 1} {
		if _, err := os.Stat(ChunkFileName(outputPath, idx)); !os.IsNotExist(err) {
			t.Errorf("chunk file %d should be removed once copied", idx)
		}
	}
	if _, err := os.Stat(ChunkFileName(outputPath, 3)); err != nil {
		t.Error("chunk file 3 was never reached and should remain")
	}
}

func TestAssembleSingleChunkRenames(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := PlanChunks(11, false, 4, 0)
	if err := os.WriteFile(ChunkFileName(outputPath, 0), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Assemble(plan, outputPath, AssembleOptions{}); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	got, _ := os.ReadFile(outputPath)
	if string(got) != "hello world" {
		t.Errorf("unexpected output %q", got)
	}
	if _, err := os.Stat(ChunkFileName(outputPath, 0)); !os.IsNotExist(err) {
		t.Error("temp file should be gone after rename")
	}
}

func TestAssembleTotalMismatch(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.bin")
	plan := ChunkPlan{Chunks: []Chunk{{Index: 0, Start: 0, End: 9}, {Index: 1, Start: 10, End: 19}}, Ranged: true, TotalSize: 20}
	os.WriteFile(ChunkFileName(outputPath, 0), []byte("0123456789"), 0644)
	os.WriteFile(ChunkFileName(outputPath, 1), []byte("short"), 0644)

	var mergeErr *MergeError
	if err := Assemble(plan, outputPath, AssembleOptions{}); !errors.As(err, &mergeErr) {
		t.Fatalf("expected MergeError, got %v", err)
	}
}
