package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses sizes like "5MB", "256KB", "1.5GB" or a plain byte count.
// Units are binary (1KB = 1024).
func ParseBytes(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	multiplier := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	return int64(value * float64(multiplier)), nil
}

// OutputNameFromURL returns the last path segment of link, or
// DefaultOutputName when the URL has none.
func OutputNameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return DefaultOutputName
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return DefaultOutputName
	}
	return name
}

func IsHTTPURL(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

// ReadDownloadList reads a batch list. Files ending in .yaml/.yml hold a
// list of {link, op} entries; anything else is a text list with one
// "URL [OUTPUT]" pair per line and # comments.
func ReadDownloadList(filePath string) ([]BatchJob, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		jobs []BatchJob
		err  error
	)
	if ext == ".yaml" || ext == ".yml" {
		jobs, err = readYAMLList(filePath)
	} else {
		jobs, err = readTextList(filePath)
	}
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no valid URLs found in %s", filePath)
	}
	return jobs, nil
}

func readYAMLList(filePath string) ([]BatchJob, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filePath, err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", filePath, err)
	}
	var jobs []BatchJob
	for i, entry := range entries {
		if !IsHTTPURL(entry.URL) {
			log.Warn().Str("op", "utils/functions").Int("entry", i+1).Str("url", entry.URL).Msg("Skipping invalid URL")
			continue
		}
		output := entry.OutputPath
		if output == "" {
			output = OutputNameFromURL(entry.URL)
		}
		jobs = append(jobs, NewBatchJob(entry.URL, output))
	}
	return jobs, nil
}

func readTextList(filePath string) ([]BatchJob, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open file %s: %w", filePath, err)
	}
	defer file.Close()

	var jobs []BatchJob
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		link := fields[0]
		if !IsHTTPURL(link) {
			log.Warn().Str("op", "utils/functions").Int("line", lineNum).Str("url", link).Msg("Skipping invalid URL")
			continue
		}
		output := OutputNameFromURL(link)
		if len(fields) > 1 {
			output = fields[1]
		}
		jobs = append(jobs, NewBatchJob(link, output))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filePath, err)
	}
	return jobs, nil
}

// CleanFunction removes the chunk files and resume metadata left behind
// for outputPath, and nothing that belongs to another output.
func CleanFunction(outputPath string) error {
	dir := filepath.Dir(outputPath)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	base := regexp.QuoteMeta(filepath.Base(outputPath))
	chunkFile := regexp.MustCompile(`^` + base + `(\.part\d+|` + regexp.QuoteMeta(ResumeMetaSuffix) + `)$`)
	for _, file := range files {
		if file.IsDir() || !chunkFile.MatchString(file.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
			return err
		}
		log.Debug().Str("op", "utils/functions").Str("file", file.Name()).Msg("Removed chunk file")
	}
	return nil
}
