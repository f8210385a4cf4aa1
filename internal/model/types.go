package model

// Document describes one source document referenced by a tool call. Documents
// are identified by URL (remote) or local path; ContentHash is the sha256 of
// the fetched bytes and is the cache key for derived page text.
type Document struct {
	DocID       int64
	URL         string
	LocalPath   string
	Format      string
	SizeBytes   int64
	MTimeUnix   int64
	ContentHash string
	Status      string
}

// PageSample is the classification input for one page: the page number and a
// short text sample taken from the start of the page.
type PageSample struct {
	Page       int    `json:"page"`
	TextSample string `json:"textSample"`
}

// PageText is the full extracted text of one page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PageLabel is one accepted classification result.
type PageLabel struct {
	Page       int     `json:"page"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FieldSource records where an extracted value came from.
type FieldSource struct {
	Page    int  `json:"page"`
	LineIdx *int `json:"lineIdx,omitempty"`
}

// ExtractedField is one accepted extraction result. Value keeps whatever type
// the model returned (number, string, bool, null).
type ExtractedField struct {
	Name       string      `json:"name"`
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
}

// FieldSpec describes one field the caller wants extracted.
type FieldSpec struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Pattern string `json:"pattern,omitempty"`
}

// FieldSchema is the caller-supplied extraction contract.
type FieldSchema struct {
	Fields []FieldSpec `json:"fields"`
}

// PageSummary is one per-page summary result.
type PageSummary struct {
	Page    int    `json:"page"`
	Summary string `json:"summary"`
}

// PageRange selects a 1-based inclusive page interval. Zero values mean
// unbounded on that side.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// PageFilter selects pages either by explicit list or by range. An empty
// filter selects all pages.
type PageFilter struct {
	Pages []int      `json:"pages,omitempty"`
	Range *PageRange `json:"range,omitempty"`
}

// Capabilities advertises what the provider supports; surfaced through the
// docsray.stats tool.
type Capabilities struct {
	Formats   []string
	MaxFileMB int
	Features  map[string]bool
}
