package text

import (
	"fmt"
	"strings"

	"ragchat/internal/apperr"
)

type Strategy string

const (
	StrategyFixed     Strategy = "fixed"
	StrategyDelimiter Strategy = "delimiter"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 0
	DefaultDelimiter = "\n\n"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFixed:
		return StrategyFixed, nil
	case StrategyDelimiter:
		return StrategyDelimiter, nil
	}
	return "", apperr.New(apperr.CodeIngestStrategyInvalid,
		"Invalid strategy. Choose 'fixed' or 'delimiter'.",
		apperr.Field("strategy", s))
}

type Params struct {
	Strategy  Strategy
	ChunkSize int
	Overlap   int
	Delimiter string
}

func DefaultParams() Params {
	return Params{
		Strategy:  StrategyFixed,
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
		Delimiter: DefaultDelimiter,
	}
}

func (p Params) Validate() error {
	switch p.Strategy {
	case StrategyFixed:
		if p.ChunkSize <= 0 {
			return apperr.New(apperr.CodeIngestParamsInvalid, "chunk_size must be positive", apperr.Field("chunk_size", p.ChunkSize))
		}
		if p.Overlap < 0 {
			return apperr.New(apperr.CodeIngestParamsInvalid, "overlap must not be negative", apperr.Field("overlap", p.Overlap))
		}
		if p.Overlap >= p.ChunkSize {
			return apperr.New(apperr.CodeIngestParamsInvalid,
				fmt.Sprintf("overlap (%d) must be smaller than chunk_size (%d)", p.Overlap, p.ChunkSize))
		}
	case StrategyDelimiter:
		if p.Delimiter == "" {
			return apperr.New(apperr.CodeIngestParamsInvalid, "delimiter must not be empty")
		}
	default:
		return apperr.New(apperr.CodeIngestStrategyInvalid,
			"Invalid strategy. Choose 'fixed' or 'delimiter'.",
			apperr.Field("strategy", string(p.Strategy)))
	}
	return nil
}

type Chunk struct {
	// Index is the 1-based position among the document's kept chunks.
	Index int    `json:"index"`
	Text  string `json:"text"`
	// Start is the rune offset of the window (fixed) or piece (delimiter) in the document.
	Start int `json:"start"`
}

// Split segments a document into ordered, trimmed, non-empty chunks.
// A document that is empty after trimming yields a CodeIngestContentEmpty error.
func Split(doc string, p Params) ([]Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil, apperr.New(apperr.CodeIngestContentEmpty, "document has no extractable text")
	}

	if p.Strategy == StrategyDelimiter {
		return splitDelimiter(doc, p.Delimiter), nil
	}
	return splitFixed(doc, p.ChunkSize, p.Overlap), nil
}

func splitFixed(doc string, size, overlap int) []Chunk {
	runes := []rune(doc)
	step := size - overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Text: piece, Start: start})
	}
	return chunks
}

func splitDelimiter(doc, delim string) []Chunk {
	var chunks []Chunk
	offset := 0
	for _, part := range strings.Split(doc, delim) {
		start := offset
		offset += len([]rune(part)) + len([]rune(delim))

		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Text: piece, Start: start})
	}
	return chunks
}

// Texts returns the chunk contents in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
