package utils

import "github.com/google/uuid"

// BatchJob is one (url, output_path) pair submitted to the scheduler.
type BatchJob struct {
	ID         string
	URL        string
	OutputPath string
}

func NewBatchJob(url, outputPath string) BatchJob {
	return BatchJob{ID: uuid.NewString(), URL: url, OutputPath: outputPath}
}

// DownloadEntry is one entry of a YAML batch file.
type DownloadEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	URL        string `yaml:"link"`
}
