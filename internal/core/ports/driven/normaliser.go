package driven

// Normaliser cleans submitted text of one content family before it is split.
type Normaliser interface {
	Normalise(content string, mimeType string) string

	// SupportedTypes lists exact MIME types or "family/*" wildcards
	SupportedTypes() []string

	// Priority breaks ties between matching normalisers; higher wins
	Priority() int
}

// NormaliserRegistry picks the normaliser for a document's content type.
// Get returns nil when nothing matches and the text is used as is.
type NormaliserRegistry interface {
	Get(mimeType string) Normaliser
}

// Span is a piece of normalised document text with its byte range in the
// text the pipeline received.
type Span struct {
	Content     string
	Position    int
	StartOffset int
	EndOffset   int
}

// PostProcessor is one stage of the text pipeline. The first stage sees a
// single span holding the whole text.
type PostProcessor interface {
	Process(spans []Span) []Span
	Name() string
	// Order sorts stages ascending; the splitter is 0
	Order() int
}

// PostProcessorPipeline turns normalised text into the spans that become
// embedding chunks, numbered from 0.
type PostProcessorPipeline interface {
	Process(content string) []Span
}
