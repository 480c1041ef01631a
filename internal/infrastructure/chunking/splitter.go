package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts long text into overlapping rune windows for embedding models
// with a bounded context. Windows end on whitespace when one is close enough.
type Splitter struct {
	ChunkSize int
	Overlap   int
	MaxChunks int
}

func NewSplitter(chunkSize, overlap, maxChunks int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if maxChunks < 0 {
		maxChunks = 0
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		MaxChunks: maxChunks,
	}
}

// Normalize collapses runs of whitespace into single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split returns at most MaxChunks windows (unbounded when MaxChunks is 0),
// keeping the beginning of the text.
func (s *Splitter) Split(text string) []string {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = s.softEnd(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) || (s.MaxChunks > 0 && len(out) == s.MaxChunks) {
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

// softEnd moves end back to the last space within the trailing tenth of the window.
func (s *Splitter) softEnd(runes []rune, start, end int) int {
	limit := end - s.ChunkSize/10
	if limit <= start+s.Overlap {
		return end
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
