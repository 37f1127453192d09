// Package chunker splits extracted document text into overlapping,
// bounded-size chunks for embedding.
//
// Splitting is recursive over an ordered list of separators: the text is cut
// on the first separator it contains, pieces that are still too long are cut
// again with the next separator, and the resulting small pieces are merged
// greedily back up to the chunk size. When a merged chunk is emitted, the
// pieces at its tail (up to the overlap size) seed the next chunk.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// DefaultSeparators prefers paragraph breaks, then line breaks, then spaces,
// and finally falls back to single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// ErrInvalidConfig is returned by New for unusable size settings.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config controls chunk sizes, measured in Unicode code points.
type Config struct {
	ChunkSize    int
	ChunkOverlap int

	// Separators in priority order. Empty means DefaultSeparators.
	Separators []string
}

// Chunk is a contiguous slice of the source text. Start and End are byte
// offsets, so source[Start:End] == Text.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Splitter is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func New(cfg Config) (*Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", ErrInvalidConfig, cfg.ChunkOverlap, cfg.ChunkSize)
	}

	separators := cfg.Separators
	if len(separators) == 0 {
		separators = DefaultSeparators
	}

	return &Splitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: separators,
	}, nil
}

// NewDefault returns a Splitter with DefaultChunkSize and DefaultChunkOverlap.
func NewDefault() *Splitter {
	s, _ := New(Config{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap})
	return s
}

// Split returns the chunks of text in document order. Chunks are trimmed of
// surrounding whitespace; empty or whitespace-only text yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	spans := s.split(text, span{start: 0, end: len(text), runes: utf8.RuneCountInString(text)}, s.separators)

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		sp, ok := trim(text, sp)
		if !ok {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  text[sp.start:sp.end],
			Start: sp.start,
			End:   sp.end,
		})
	}
	return chunks
}

// SplitText is Split without offsets.
func (s *Splitter) SplitText(text string) []string {
	chunks := s.Split(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// span is a byte range of the source text with its length in runes.
type span struct {
	start int
	end   int
	runes int
}

func newSpan(text string, start, end int) span {
	return span{start: start, end: end, runes: utf8.RuneCountInString(text[start:end])}
}

func (s *Splitter) split(text string, sp span, separators []string) []span {
	segment := text[sp.start:sp.end]

	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(segment, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var (
		final []span
		small []span
	)
	for _, piece := range cut(text, sp, separator) {
		if piece.runes < s.size {
			small = append(small, piece)
			continue
		}

		if len(small) > 0 {
			final = append(final, s.merge(small)...)
			small = nil
		}

		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(text, piece, next)...)
		}
	}

	if len(small) > 0 {
		final = append(final, s.merge(small)...)
	}

	return final
}

// cut splits sp on every occurrence of sep, keeping each separator at the
// start of the piece that follows it. An empty sep cuts between runes.
func cut(text string, sp span, sep string) []span {
	segment := text[sp.start:sp.end]

	if sep == "" {
		pieces := make([]span, 0, sp.runes)
		for i, r := range segment {
			start := sp.start + i
			pieces = append(pieces, span{start: start, end: start + utf8.RuneLen(r), runes: 1})
		}
		return pieces
	}

	var pieces []span
	cur := 0
	from := 0
	for {
		i := strings.Index(segment[from:], sep)
		if i < 0 {
			break
		}
		at := from + i
		if at > cur {
			pieces = append(pieces, newSpan(text, sp.start+cur, sp.start+at))
		}
		cur = at
		from = at + len(sep)
	}
	if cur < len(segment) {
		pieces = append(pieces, newSpan(text, sp.start+cur, sp.end))
	}
	return pieces
}

// merge joins consecutive pieces into chunks of at most s.size runes,
// carrying up to s.overlap runes of trailing pieces into the next chunk.
// Pieces are contiguous, so a merged chunk is the span from the first
// piece's start to the last piece's end.
func (s *Splitter) merge(pieces []span) []span {
	var (
		out     []span
		current []span
		total   int
	)

	for _, p := range pieces {
		if total+p.runes > s.size && len(current) > 0 {
			out = append(out, join(current, total))

			for total > s.overlap || (total+p.runes > s.size && total > 0) {
				total -= current[0].runes
				current = current[1:]
			}
		}

		current = append(current, p)
		total += p.runes
	}

	if len(current) > 0 {
		out = append(out, join(current, total))
	}

	return out
}

func join(pieces []span, runes int) span {
	return span{start: pieces[0].start, end: pieces[len(pieces)-1].end, runes: runes}
}

// trim narrows sp to exclude surrounding whitespace and reports whether
// anything is left.
func trim(text string, sp span) (span, bool) {
	segment := text[sp.start:sp.end]
	left := strings.TrimLeftFunc(segment, unicode.IsSpace)
	trimmed := strings.TrimRightFunc(left, unicode.IsSpace)
	if trimmed == "" {
		return span{}, false
	}

	start := sp.start + (len(segment) - len(left))
	return span{start: start, end: start + len(trimmed)}, true
}
