package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitRespectsMaxLengthAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Side yard setback shall be five feet in the district. ")
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	splitter := NewSplitter(300, 60)
	chunks := splitter.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > 300 {
			t.Fatalf("chunk %d has %d runes, max 300", i, n)
		}
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1])
		overlap := string(prev[len(prev)-60:])
		if !strings.HasPrefix(chunk, overlap) {
			t.Fatalf("chunk %d does not start with the 60-rune tail of chunk %d", i, i-1)
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 20)
	text := first + "\n\n" + strings.Repeat("c", 80)

	chunks := NewSplitter(100, 10).Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Fatalf("expected first chunk to end at paragraph break, got %q", chunks[0])
	}
}

func TestSplitFallsBackToSentenceThenRawCut(t *testing.T) {
	sentence := strings.Repeat("x", 60) + ". " + strings.Repeat("y", 60)
	chunks := NewSplitter(100, 10).Split(sentence)
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("expected sentence cut, got %q", chunks[0])
	}

	raw := strings.Repeat("z", 250)
	chunks = NewSplitter(100, 10).Split(raw)
	if utf8.RuneCountInString(chunks[0]) != 100 {
		t.Fatalf("expected raw cut at 100 runes, got %d", utf8.RuneCountInString(chunks[0]))
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 raw chunks for 250 runes with overlap 10, got %d", len(chunks))
	}
}

func TestSplitSkipsBlankInput(t *testing.T) {
	if chunks := NewSplitter(100, 10).Split(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	if chunks := NewSplitter(100, 10).Split("   \n\n  "); len(chunks) != 0 {
		t.Fatalf("expected whitespace-only text to yield no chunks, got %d", len(chunks))
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != DefaultChunkSize || s.Overlap != 0 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	s = NewSplitter(100, 100)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap clamp to 25, got %d", s.Overlap)
	}
}
