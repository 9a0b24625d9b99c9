package chunking

import (
	"strings"
	"unicode"

	"github.com/avpetrov/reportgen/internal/core/ports"
)

// Splitter advances a fixed-size window across the text and prefers to cut at
// a sentence terminator, then at whitespace, within the second half of the
// window, so segments do not end mid-word or mid-sentence. Consecutive
// segments overlap by the configured amount.
type Splitter struct {
	DefaultSize    int
	DefaultOverlap int
}

func NewSplitter(defaultSize, defaultOverlap int) *Splitter {
	if defaultSize <= 0 {
		defaultSize = 900
	}
	if defaultOverlap < 0 {
		defaultOverlap = 0
	}
	if defaultOverlap >= defaultSize {
		defaultOverlap = defaultSize / 4
	}
	return &Splitter{
		DefaultSize:    defaultSize,
		DefaultOverlap: defaultOverlap,
	}
}

func (s *Splitter) Split(text string, maxSize, overlap int) []ports.Segment {
	if maxSize <= 0 {
		maxSize = s.DefaultSize
	}
	if overlap < 0 {
		overlap = s.DefaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= maxSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []ports.Segment{{Index: 0, Start: 0, End: n, Text: text}}
	}

	// Hard ceiling bounds the loop even for adversarial overlap/size pairs;
	// reaching it truncates chunking instead of spinning.
	step := maxSize - overlap
	if step <= 0 {
		step = maxSize
	}
	ceiling := n/step + 4

	out := make([]ports.Segment, 0, n/step+1)
	start := 0
	for iter := 0; start < n && iter < ceiling; iter++ {
		end := start + maxSize
		if end >= n {
			out = appendSegment(out, runes, start, n)
			break
		}

		cut := boundaryCut(runes, start, end, maxSize)
		out = appendSegment(out, runes, start, cut)

		next := cut - overlap
		if next <= start {
			// No forward progress from the overlap; force an advance of at
			// least half the window so the loop always terminates.
			next = start + maxSize/2
			if next <= start {
				next = start + 1
			}
		}
		start = next
	}
	return out
}

// boundaryCut searches backward from the window edge for the last sentence
// terminator, then the last whitespace, accepting a cut only past the window
// midpoint. Without either it cuts at the raw edge.
func boundaryCut(runes []rune, start, end, maxSize int) int {
	mid := start + maxSize/2
	for i := end - 1; i > mid; i-- {
		if isSentenceTerminator(runes[i]) {
			return i + 1
		}
	}
	for i := end - 1; i > mid; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

func appendSegment(out []ports.Segment, runes []rune, start, end int) []ports.Segment {
	text := string(runes[start:end])
	if strings.TrimSpace(text) == "" {
		return out
	}
	return append(out, ports.Segment{
		Index: len(out),
		Start: start,
		End:   end,
		Text:  strings.TrimSpace(text),
	})
}
