package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestManagerSummaryListsFailures(t *testing.T) {
	var buf bytes.Buffer
	m := newManager(&buf, false)
	ok := m.RegisterFunction("good.bin")
	bad := m.RegisterFunction("bad.bin")
	m.SetStatus(ok, "active")
	m.AddProgressBarToStream(ok, 5, 10, "5 B / 10 B")
	m.Complete(ok, "")
	m.ReportError(bad, errors.New("status 404"))

	m.StartDisplay()
	m.StopDisplay()

	out := buf.String()
	for _, want := range []string{"Completed 1 of 2", "Failed 1 of 2", "File: bad.bin", "status 404"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[1A") || strings.Contains(out, "\033[J") {
		t.Error("non-terminal output should not redraw")
	}
}

func TestManagerCompleteClearsStream(t *testing.T) {
	m := newManager(&bytes.Buffer{}, false)
	id := m.RegisterFunction("file.bin")
	m.AddProgressBarToStream(id, 1, 2, "")
	if len(m.outputs[id].StreamLines) == 0 {
		t.Fatal("expected a progress line")
	}
	m.Complete(id, "")
	info := m.outputs[id]
	if len(info.StreamLines) != 0 || info.Status != "success" || info.Message != "Completed file.bin" {
		t.Errorf("unexpected state after completion: %+v", info)
	}
}

func TestPrintProgressBar(t *testing.T) {
	if bar := PrintProgressBar(50, 100, 10); !strings.Contains(bar, "50.0%") {
		t.Errorf("expected 50%% in %q", bar)
	}
	if bar := PrintProgressBar(200, 100, 10); !strings.Contains(bar, "100.0%") {
		t.Errorf("expected progress clamped to 100%%, got %q", bar)
	}
	if bar := PrintProgressBar(5, 0, 10); !strings.Contains(bar, "?%") {
		t.Errorf("expected unknown percentage, got %q", bar)
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(2048, 2); got != "1.00 KB/s" {
		t.Errorf("unexpected speed %q", got)
	}
	if got := FormatSpeed(100, 0); got != "0 B/s" {
		t.Errorf("unexpected speed %q", got)
	}
}
