package httpdl

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog/log"
)

type AssembleOptions struct {
	// DeferCleanup removes chunk files only after the output is fully
	// written, so a failed merge can be resumed.
	DeferCleanup bool
}

// Assemble writes the chunk files of plan into outputPath in index order.
func Assemble(plan ChunkPlan, outputPath string, opts AssembleOptions) error {
	chunks := slices.Clone(plan.Chunks)
	slices.SortFunc(chunks, func(a, b Chunk) int { return a.Index - b.Index })
	if len(chunks) == 1 {
		if done, err := renameSingle(chunks[0], outputPath); done || err != nil {
			return err
		}
	}

	destFile, err := os.Create(outputPath)
	if err != nil {
		return &MergeError{Path: outputPath, Err: err}
	}
	defer destFile.Close()

	var totalWritten int64
	for _, chunk := range chunks {
		tempFilePath := ChunkFileName(outputPath, chunk.Index)
		written, err := copyChunk(destFile, tempFilePath, chunk.Size())
		if err != nil {
			return &MergeError{Path: outputPath, Err: err}
		}
		totalWritten += written
		if !opts.DeferCleanup {
			removeChunkFile(tempFilePath)
		}
	}
	if plan.TotalSize > 0 && totalWritten != plan.TotalSize {
		return &MergeError{
			Path: outputPath,
			Err:  fmt.Errorf("total written bytes (%d) doesn't match expected file size (%d)", totalWritten, plan.TotalSize),
		}
	}
	if err := destFile.Sync(); err != nil {
		return &MergeError{Path: outputPath, Err: err}
	}
	if err := destFile.Close(); err != nil {
		return &MergeError{Path: outputPath, Err: err}
	}
	if opts.DeferCleanup {
		for _, chunk := range chunks {
			removeChunkFile(ChunkFileName(outputPath, chunk.Index))
		}
	}
	log.Debug().Str("op", "http/assemble").Int("chunks", len(chunks)).Int64("totalBytes", totalWritten).Str("outputFile", outputPath).Msg("File assembly completed")
	return nil
}

// renameSingle moves a lone chunk file into place when it holds exactly the
// chunk. It reports false when the caller has to copy instead.
func renameSingle(chunk Chunk, outputPath string) (bool, error) {
	tempFilePath := ChunkFileName(outputPath, chunk.Index)
	fileInfo, err := os.Stat(tempFilePath)
	if err != nil {
		return false, &MergeError{Path: outputPath, Err: err}
	}
	if size := chunk.Size(); size >= 0 && fileInfo.Size() != size {
		return false, nil
	}
	if err := os.Rename(tempFilePath, outputPath); err != nil {
		return false, &MergeError{Path: outputPath, Err: fmt.Errorf("error renaming (finalizing) output file: %w", err)}
	}
	return true, nil
}

// copyChunk appends one chunk file to dst. Bounded chunks copy exactly
// size bytes.
func copyChunk(dst io.Writer, tempFilePath string, size int64) (int64, error) {
	tempFile, err := os.Open(tempFilePath)
	if err != nil {
		return 0, fmt.Errorf("error opening chunk file %s: %w", tempFilePath, err)
	}
	defer tempFile.Close()
	if size < 0 {
		written, err := io.Copy(dst, tempFile)
		if err != nil {
			return written, fmt.Errorf("error copying chunk data: %w", err)
		}
		return written, nil
	}
	written, err := io.CopyN(dst, tempFile, size)
	if err != nil {
		return written, fmt.Errorf("error copying chunk data from %s (%d of %d bytes): %w", tempFilePath, written, size, err)
	}
	return written, nil
}

func removeChunkFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Str("op", "http/assemble").Err(err).Str("file", path).Msg("Failed to remove chunk file")
	}
}
