package chunking

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 200
)

// Splitter cuts text into chunks of at most ChunkSize runes. Each chunk
// after the first starts Overlap runes before the end of its predecessor.
// Cut points prefer a paragraph break, then a sentence end, then any
// whitespace, and fall back to a raw cut at ChunkSize.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}

		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cutPoint picks the end of the chunk starting at start. The result lies in
// (start+Overlap, limit] so the next chunk always advances.
func (s *Splitter) cutPoint(runes []rune, start, limit int) int {
	minCut := start + s.ChunkSize/2
	if minCut <= start+s.Overlap {
		minCut = start + s.Overlap + 1
	}
	if minCut >= limit {
		return limit
	}

	for i := limit - 2; i >= minCut-2 && i >= start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}
	for i := limit - 2; i >= minCut-1 && i >= start; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := limit - 1; i >= minCut && i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';':
		return true
	default:
		return false
	}
}
