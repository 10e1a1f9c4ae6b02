package httpdl

import (
	"fmt"
	"strconv"

	"github.com/tanq16/splitdl/internal/utils"
)

// MinChunkSize keeps parallel chunks from degenerating into tiny requests.
const MinChunkSize int64 = 1024 * 1024

// Chunk is an inclusive byte range of the resource. End is -1 on the
// sequential path when the size is unknown.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Size returns the chunk length, or -1 for an open-ended chunk.
func (c Chunk) Size() int64 {
	if c.End < 0 {
		return -1
	}
	return c.End - c.Start + 1
}

// ChunkPlan is the ordered, gapless split of one attempt. Ranged is false
// for the single-chunk sequential path.
type ChunkPlan struct {
	Chunks    []Chunk
	Ranged    bool
	TotalSize int64
}

// PlanChunks splits [0, totalSize) into at most workers chunks. Resources
// without range support, at or below minParallel, or with a single worker
// get one chunk spanning the whole file.
func PlanChunks(totalSize int64, supportsRanges bool, workers int, minParallel int64) ChunkPlan {
	if !supportsRanges || totalSize <= minParallel || workers <= 1 || totalSize <= 0 {
		return ChunkPlan{
			Chunks:    []Chunk{{Index: 0, Start: 0, End: totalSize - 1}},
			TotalSize: totalSize,
		}
	}
	effective := min(int64(workers), max(1, totalSize/MinChunkSize))
	chunkSize := (totalSize + effective - 1) / effective
	plan := ChunkPlan{Ranged: true, TotalSize: totalSize}
	for start, index := int64(0), 0; start < totalSize; start, index = start+chunkSize, index+1 {
		end := min(start+chunkSize, totalSize) - 1
		plan.Chunks = append(plan.Chunks, Chunk{Index: index, Start: start, End: end})
	}
	return plan
}

// ChunkFileName is the temp file holding chunk index of outputPath.
func ChunkFileName(outputPath string, index int) string {
	return outputPath + ".part" + strconv.Itoa(index)
}

// ResumeMetaFileName holds the validator of the resource the chunk files of
// outputPath were fetched from.
func ResumeMetaFileName(outputPath string) string {
	return outputPath + utils.ResumeMetaSuffix
}

func (p ChunkPlan) String() string {
	return fmt.Sprintf("%d chunk(s) over %d bytes (ranged=%v)", len(p.Chunks), p.TotalSize, p.Ranged)
}
