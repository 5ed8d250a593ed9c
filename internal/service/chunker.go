package service

import "strings"

const (
	DefaultMaxTokensPerChunk = 500
	DefaultOverlapTokens     = 50
)

// Chunker splits raw document text into overlapping token-bounded chunks
// suitable for embedding. Identical input and parameters always yield an
// identical chunk sequence, which is what makes re-ingestion idempotent.
type Chunker struct {
	maxTokensPerChunk int
	overlapTokens     int
}

func NewChunker(maxTokensPerChunk, overlapTokens int) *Chunker {
	if maxTokensPerChunk <= 0 {
		maxTokensPerChunk = DefaultMaxTokensPerChunk
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	if overlapTokens >= maxTokensPerChunk {
		overlapTokens = maxTokensPerChunk / 2
	}
	return &Chunker{
		maxTokensPerChunk: maxTokensPerChunk,
		overlapTokens:     overlapTokens,
	}
}

// Chunk splits content on paragraph boundaries first, then packs paragraphs
// into chunks of at most maxTokensPerChunk tokens. The trailing overlapTokens
// of each chunk are prepended to the next one to preserve context continuity
// across boundaries. Empty input yields an empty sequence, not an error.
func (c *Chunker) Chunk(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Oversized paragraphs are pre-split on token boundaries so that any
		// piece still fits a chunk together with its leading overlap.
		pieceLimit := c.maxTokensPerChunk - c.overlapTokens
		for CountTokens(p) > pieceLimit {
			fields := strings.Fields(p)
			paragraphs = append(paragraphs, strings.Join(fields[:pieceLimit], " "))
			p = strings.Join(fields[pieceLimit:], " ")
		}
		paragraphs = append(paragraphs, p)
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	overlap := ""
	var pending []string
	pendingTokens := CountTokens(overlap)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		parts := pending
		if overlap != "" {
			parts = append([]string{overlap}, pending...)
		}
		chunk := strings.Join(parts, "\n\n")
		chunks = append(chunks, chunk)
		if c.overlapTokens > 0 {
			overlap = TailTokens(chunk, c.overlapTokens)
		}
		pending = nil
		pendingTokens = CountTokens(overlap)
	}

	for _, p := range paragraphs {
		pTokens := CountTokens(p)
		if len(pending) > 0 && pendingTokens+pTokens > c.maxTokensPerChunk {
			flush()
		}
		pending = append(pending, p)
		pendingTokens += pTokens
	}
	flush()

	return chunks
}
