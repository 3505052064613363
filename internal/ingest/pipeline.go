package ingest

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.PostProcessorPipeline = (*Pipeline)(nil)
	_ driven.PostProcessor         = (*Chunker)(nil)
	_ driven.PostProcessor         = (*WhitespaceNormalizer)(nil)
	_ driven.PostProcessor         = (*Deduplicator)(nil)
)

// Pipeline runs post-processors in Order() and numbers the resulting
// chunks densely from 0.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// DefaultPipeline chunks at 1000 characters with 200 overlap and tidies whitespace.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(NewChunker(DefaultChunkConfig()))
	p.Add(NewWhitespaceNormalizer())
	return p
}

// Add adds a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Order() < p.processors[j].Order()
	})
}

// Process turns content into chunks ready for embedding.
// Empty content yields no chunks.
func (p *Pipeline) Process(content string) []driven.Span {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	p.mu.RLock()
	processors := append([]driven.PostProcessor(nil), p.processors...)
	p.mu.RUnlock()

	chunks := []driven.Span{{Content: content, EndOffset: len(content)}}
	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}
	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// ChunkConfig configures the chunker. Sizes are in characters.
type ChunkConfig struct {
	MaxChunkSize       int
	Overlap            int
	PreserveSentences  bool
	PreserveParagraphs bool
}

// DefaultChunkConfig returns the standard 1000/200 split.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            200,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits content into overlapping windows, preferring paragraph,
// sentence and word boundaries near the end of each window.
type Chunker struct {
	config ChunkConfig
}

// NewChunker creates a chunker. Overlap is capped below MaxChunkSize.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.MaxChunkSize {
		config.Overlap = config.MaxChunkSize / 5
	}
	return &Chunker{config: config}
}

func (c *Chunker) Name() string { return "chunker" }

func (c *Chunker) Order() int { return 0 }

// Process splits every input chunk.
func (c *Chunker) Process(chunks []driven.Span) []driven.Span {
	var out []driven.Span
	for _, chunk := range chunks {
		out = append(out, c.split(chunk)...)
	}
	return out
}

func (c *Chunker) split(chunk driven.Span) []driven.Span {
	runes := []rune(chunk.Content)
	if len(runes) <= c.config.MaxChunkSize {
		return []driven.Span{chunk}
	}

	// byteAt maps rune positions to byte offsets for the Start/End offsets
	byteAt := make([]int, len(runes)+1)
	for i, r := range runes {
		byteAt[i+1] = byteAt[i] + utf8.RuneLen(r)
	}

	var out []driven.Span
	start := 0
	for start < len(runes) {
		end := start + c.config.MaxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if bp := c.breakPoint(runes, start, end); bp > start {
			end = bp
		}

		out = append(out, driven.Span{
			Content:     string(runes[start:end]),
			StartOffset: chunk.StartOffset + byteAt[start],
			EndOffset:   chunk.StartOffset + byteAt[end],
		})
		if end == len(runes) {
			break
		}

		next := end - c.config.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// breakPoint looks back up to 100 characters from maxEnd for a boundary
func (c *Chunker) breakPoint(runes []rune, start, maxEnd int) int {
	from := maxEnd - 100
	if from < start {
		from = start
	}
	window := string(runes[from:maxEnd])

	runeOffset := func(byteIdx int) int {
		return from + utf8.RuneCountInString(window[:byteIdx])
	}

	if c.config.PreserveParagraphs {
		if i := strings.LastIndex(window, "\n\n"); i != -1 {
			return runeOffset(i + 2)
		}
	}
	if c.config.PreserveSentences {
		best := -1
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if i := strings.LastIndex(window, ender); i != -1 && i+len(ender) > best {
				best = i + len(ender)
			}
		}
		if best > 0 {
			return runeOffset(best)
		}
	}
	if i := strings.LastIndex(window, " "); i != -1 {
		return runeOffset(i + 1)
	}
	return maxEnd
}

// WhitespaceNormalizer squeezes spaces, trims lines and drops empty chunks.
type WhitespaceNormalizer struct{}

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

func (w *WhitespaceNormalizer) Name() string { return "whitespace-normalizer" }

func (w *WhitespaceNormalizer) Order() int { return 5 }

func (w *WhitespaceNormalizer) Process(chunks []driven.Span) []driven.Span {
	out := make([]driven.Span, 0, len(chunks))
	for _, chunk := range chunks {
		content := strings.TrimSpace(collapseBlankLines(collapseSpaces(chunk.Content)))
		if content == "" {
			continue
		}
		chunk.Content = content
		out = append(out, chunk)
	}
	return out
}

// Deduplicator drops chunks whose text repeats an earlier chunk,
// ignoring case and surrounding whitespace. Short chunks are always kept.
type Deduplicator struct {
	minLength int
}

// NewDeduplicator creates a deduplicator that inspects chunks of at least minLength characters.
func NewDeduplicator(minLength int) *Deduplicator {
	return &Deduplicator{minLength: minLength}
}

func (d *Deduplicator) Name() string { return "deduplicator" }

func (d *Deduplicator) Order() int { return 10 }

func (d *Deduplicator) Process(chunks []driven.Span) []driven.Span {
	seen := make(map[string]bool, len(chunks))
	out := make([]driven.Span, 0, len(chunks))
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk.Content) >= d.minLength {
			key := strings.ToLower(strings.TrimSpace(chunk.Content))
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, chunk)
	}
	return out
}
