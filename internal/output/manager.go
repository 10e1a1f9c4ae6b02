package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileOutput is the display state of one file in a batch.
type FileOutput struct {
	ID          int
	Label       string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders live per-file status lines and a final summary. It is
// safe for concurrent use by the download goroutines.
type Manager struct {
	out         io.Writer
	outputs     map[int]*FileOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	fileCount   int
	live        bool
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return newManager(os.Stdout, isTerminal())
}

func newManager(out io.Writer, live bool) *Manager {
	return &Manager{
		out:         out,
		outputs:     make(map[int]*FileOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		live:        live,
	}
}

func (m *Manager) RegisterFunction(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fileCount++
	m.outputs[m.fileCount] = &FileOutput{
		ID:          m.fileCount,
		Label:       label,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.fileCount
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

// SetStatus also restarts the file's clock when it leaves the pending state,
// so waiting for a permit is not counted as download time.
func (m *Manager) SetStatus(id int, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		if info.Status == "pending" && status != "pending" {
			info.StartTime = time.Now()
		}
		info.Status = status
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Label)
		}
		info.Message = message
		info.Complete = true
		info.Status = "success"
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.StreamLines = nil
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Label: info.Label, Error: err, Time: time.Now()})
	}
}

// AddProgressBarToStream replaces the file's stream with a progress bar for
// done of total bytes.
func (m *Manager) AddProgressBarToStream(id int, done, total int64, text string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		progressBar := PrintProgressBar(done, total, 30)
		elapsed := time.Since(info.StartTime).Seconds()
		display := fmt.Sprintf("%s%s %s %s", progressBar, debugStyle.Render(text), StyleSymbols["bullet"], debugStyle.Render(FormatSpeed(done, elapsed)))
		info.StreamLines = wrapText(display, 2+4)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortFiles() (active, pending, completed []*FileOutput) {
	all := make([]*FileOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, f := range all {
		switch {
		case f.Complete:
			completed = append(completed, f)
		case f.Status == "pending":
			pending = append(pending, f)
		default:
			active = append(active, f)
		}
	}
	return active, pending, completed
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	activeFiles, pendingFiles, completedFiles := m.sortFiles()

	// Trim completed files first when the screen is too short
	needed := len(completedFiles)
	for _, f := range activeFiles {
		needed += 1 + len(f.StreamLines)
	}
	needed += min(len(pendingFiles), 1)
	if needed > availableLines {
		keep := max(0, availableLines-(needed-len(completedFiles)))
		completedFiles = completedFiles[len(completedFiles)-min(keep, len(completedFiles)):]
	}

	lineCount := 0
	indent := strings.Repeat(" ", 2)
	streamIndent := strings.Repeat(" ", 2+4)
	printFile := func(f *FileOutput) {
		elapsed := time.Since(f.StartTime).Round(time.Second)
		if f.Complete {
			elapsed = f.LastUpdated.Sub(f.StartTime).Round(time.Second)
		}
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(f.Status), debugStyle.Render(elapsed.String()), styleMessage(f.Status, f.Message))
		lineCount++
		for _, line := range f.StreamLines {
			if lineCount >= availableLines {
				return
			}
			fmt.Fprintf(m.out, "%s%s\n", streamIndent, streamStyle.Render(line))
			lineCount++
		}
	}

	for _, f := range activeFiles {
		if lineCount >= availableLines {
			break
		}
		printFile(f)
	}
	if len(pendingFiles) > 0 && lineCount < availableLines {
		fmt.Fprintf(m.out, "%s%s %s\n", indent, m.GetStatusIndicator("pending"), pendingStyle.Render(fmt.Sprintf("%d file(s) waiting...", len(pendingFiles))))
		lineCount++
	}
	for _, f := range completedFiles {
		if lineCount >= availableLines {
			break
		}
		printFile(f)
	}
	m.numLines = lineCount
}

// StartDisplay begins redrawing on a ticker. Without a terminal only the
// final summary is printed.
func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.live {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if m.live {
					m.updateDisplay()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, report := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("File: %s", report.Label)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
	}
}

// ShowSummary prints the success and failure counts followed by every
// failed file with its last error.
func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
