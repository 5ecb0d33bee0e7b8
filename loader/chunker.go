package loader

import "strings"

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// TextChunk is one window of extracted text with its position in the
// original. Offsets are rune positions, half-open [StartChar, EndChar).
type TextChunk struct {
	Content    string
	Index      int
	SourceFile string
	StartChar  int
	EndChar    int
}

// Chunker splits text into fixed-size sliding windows with overlap. Within a
// window the boundary is nudged back to the nearest sentence-ending period or
// newline, provided that break falls after the window's midpoint.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split is deterministic: identical text, filename, size and overlap yield an
// identical chunk sequence with dense indices 0..N-1. Windows that trim to
// nothing are dropped.
func (c *Chunker) Split(text, filename string) []TextChunk {
	runes := []rune(text)
	var chunks []TextChunk

	start := 0
	idx := 0
	for start < len(runes) {
		last := start+c.size >= len(runes)
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[start:end]

		if !last {
			if bp := breakPoint(window); bp > c.size/2 {
				window = window[:bp+1]
				end = start + bp + 1
			}
		}

		content := strings.TrimSpace(string(window))
		if content != "" {
			chunks = append(chunks, TextChunk{
				Content:    content,
				Index:      idx,
				SourceFile: filename,
				StartChar:  start,
				EndChar:    end,
			})
			idx++
		}
		if last {
			break
		}

		// Advance from the effective end so the overlap stays constant even
		// when the sentence nudge shortened the window.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint returns the last sentence-ending period or newline in the
// window, or -1.
func breakPoint(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
