package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"256KB", 256 * 1024},
		{"5MB", 5 * 1024 * 1024},
		{"5 mb", 5 * 1024 * 1024},
		{"1.5GB", 3 * 512 * 1024 * 1024},
		{"10B", 10},
	}
	for _, tt := range tests {
		got, err := ParseBytes(tt.in)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "abc", "-5MB", "MB"} {
		if _, err := ParseBytes(bad); err == nil {
			t.Errorf("ParseBytes(%q): expected error", bad)
		}
	}
}

func TestOutputNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/files/archive.zip":     "archive.zip",
		"https://example.com/files/archive.zip?x=1": "archive.zip",
		"https://example.com/":                      DefaultOutputName,
		"https://example.com":                       DefaultOutputName,
	}
	for in, want := range tests {
		if got := OutputNameFromURL(in); got != want {
			t.Errorf("OutputNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadTextList(t *testing.T) {
	content := `# comment line
https://example.com/a.zip out-a.zip

https://example.com/dir/b.tar.gz
ftp://example.com/c.bin
https://example.com/
`
	listPath := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	jobs, err := ReadDownloadList(listPath)
	if err != nil {
		t.Fatalf("ReadDownloadList: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d: %+v", len(jobs), jobs)
	}
	want := [][2]string{
		{"https://example.com/a.zip", "out-a.zip"},
		{"https://example.com/dir/b.tar.gz", "b.tar.gz"},
		{"https://example.com/", DefaultOutputName},
	}
	for i, w := range want {
		if jobs[i].URL != w[0] || jobs[i].OutputPath != w[1] {
			t.Errorf("job %d = (%s, %s), want (%s, %s)", i, jobs[i].URL, jobs[i].OutputPath, w[0], w[1])
		}
		if jobs[i].ID == "" {
			t.Errorf("job %d has no ID", i)
		}
	}
}

func TestReadYAMLList(t *testing.T) {
	content := `- link: https://example.com/a.zip
  op: renamed.zip
- link: https://example.com/b.bin
- link: not-a-url
`
	listPath := filepath.Join(t.TempDir(), "urls.yaml")
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	jobs, err := ReadDownloadList(listPath)
	if err != nil {
		t.Fatalf("ReadDownloadList: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].OutputPath != "renamed.zip" || jobs[1].OutputPath != "b.bin" {
		t.Errorf("unexpected outputs: %s, %s", jobs[0].OutputPath, jobs[1].OutputPath)
	}
}

func TestReadDownloadListEmpty(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(listPath, []byte("# nothing\n\n"), 0644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	if _, err := ReadDownloadList(listPath); err == nil {
		t.Fatal("expected error for list without URLs")
	}
}

func TestCleanFunction(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "video.mp4")
	keep := []string{"video.mp4", "video.mp4.partial", "other.bin.part0", "video.mp4.partial.part3", "video.mp4.part3x", "xvideo.mp4.part1"}
	remove := []string{"video.mp4.part0", "video.mp4.part12", "video.mp4.part.meta"}
	for _, name := range append(keep, remove...) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := CleanFunction(output); err != nil {
		t.Fatalf("CleanFunction: %v", err)
	}
	for _, name := range keep {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be kept: %v", name, err)
		}
	}
	for _, name := range remove {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", name)
		}
	}
}

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{"Authorization: Basic abc", "X-Empty:", "broken"})
	if got["Authorization"] != "Basic abc" {
		t.Errorf("unexpected Authorization header: %q", got["Authorization"])
	}
	if _, ok := got["X-Empty"]; !ok {
		t.Error("expected X-Empty header to be present")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 headers, got %d", len(got))
	}
}
