// Package chunk splits a file's byte length into fixed-size ranges.
package chunk

import "iter"

// Range is the half-open byte interval [Start, End) of one chunk.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in r.
func (r Range) Len() int64 { return r.End - r.Start }

// Plan describes how a file of Size bytes is cut into chunks of ChunkSize.
// An empty file still has exactly one, zero-length chunk so it can complete
// the upload handshake.
type Plan struct {
	Size      int64
	ChunkSize int64
}

// New returns the plan for fileSize bytes. chunkSize must be positive and
// fileSize non-negative; both are guaranteed by configuration validation, so
// a violation panics.
func New(fileSize, chunkSize int64) Plan {
	if chunkSize <= 0 {
		panic("chunk: chunk size must be positive")
	}
	if fileSize < 0 {
		panic("chunk: file size must not be negative")
	}
	return Plan{Size: fileSize, ChunkSize: chunkSize}
}

// Total returns max(1, ceil(Size/ChunkSize)).
func (p Plan) Total() int {
	if p.Size == 0 {
		return 1
	}
	return int((p.Size + p.ChunkSize - 1) / p.ChunkSize)
}

// Range returns the byte range of chunk i. i must be in [0, Total()).
func (p Plan) Range(i int) Range {
	start := int64(i) * p.ChunkSize
	end := min(start+p.ChunkSize, p.Size)
	return Range{Start: start, End: end}
}

// All yields (index, range) pairs in ascending index order.
func (p Plan) All() iter.Seq2[int, Range] {
	return func(yield func(int, Range) bool) {
		total := p.Total()
		for i := 0; i < total; i++ {
			if !yield(i, p.Range(i)) {
				return
			}
		}
	}
}
