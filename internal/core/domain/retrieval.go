package domain

import "fmt"

// Retrieval signal names reported in RetrievalResult sources.
const (
	SignalDense    = "dense"
	SignalSparse   = "sparse"
	SignalGraph    = "graph"
	SignalRerank   = "rerank"
	SignalCompress = "compress"
)

type RetrievalMode string

const (
	ModeDense  RetrievalMode = "dense"
	ModeHybrid RetrievalMode = "hybrid"
)

type KGComplexity string

const (
	KGSimple  KGComplexity = "simple"
	KGComplex KGComplexity = "complex"
)

// ChunkMetadata carries the filterable attributes stored alongside each
// indexed child chunk.
type ChunkMetadata struct {
	Ticker     string `json:"ticker,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
	Section    string `json:"section,omitempty"`
	FiscalYear int    `json:"fiscal_year,omitempty"`
	PageStart  int    `json:"page_start,omitempty"`
	PageEnd    int    `json:"page_end,omitempty"`
	SourceName string `json:"source_name,omitempty"`
	Headline   string `json:"headline,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type SearchFilter struct {
	Ticker     string
	DocType    string
	Section    string
	FiscalYear int
}

// RetrievalRequest is the validated input to both retrieval entry points.
type RetrievalRequest struct {
	Query  string
	TopK   int
	Filter SearchFilter
}

// Candidate is a retrievable child chunk produced by one search signal.
// Score is source specific (cosine for dense, BM25 weight for sparse) and
// not comparable across signals before fusion.
type Candidate struct {
	ID           string        `json:"id"`
	ParentID     string        `json:"parent_id"`
	ChildText    string        `json:"child_text"`
	ChildTextRaw string        `json:"child_text_raw"`
	ParentText   string        `json:"parent_text,omitempty"`
	Metadata     ChunkMetadata `json:"metadata"`
	Score        float64       `json:"score"`
}

// KGEvidence explains why a knowledge-graph boost was applied.
type KGEvidence struct {
	MatchedEntity string `json:"matched_entity"`
	EntityType    string `json:"entity_type"`
	MatchType     string `json:"match_type"`
	RelatedTo     string `json:"related_to,omitempty"`
}

// FusedCandidate is a Candidate after rank fusion. Sources is never empty.
type FusedCandidate struct {
	Candidate

	RRFScore           float64     `json:"rrf_score"`
	Sources            []string    `json:"sources"`
	KGEvidence         *KGEvidence `json:"kg_evidence,omitempty"`
	RelevanceScore     int         `json:"relevance_score,omitempty"`
	CompressedText     string      `json:"compressed_text,omitempty"`
	CompressionSkipped bool        `json:"compression_skipped,omitempty"`
}

// HasSource reports whether the given signal contributed this candidate.
func (c FusedCandidate) HasSource(signal string) bool {
	for _, s := range c.Sources {
		if s == signal {
			return true
		}
	}
	return false
}

// RetrievalResult is the orchestrator output handed to answer synthesis.
type RetrievalResult struct {
	Candidates       []FusedCandidate `json:"candidates"`
	RetrievalSources []string         `json:"retrieval_sources"`
	FailedSources    []string         `json:"failed_sources"`
	Mode             RetrievalMode    `json:"mode"`
	FallbackNotice   string           `json:"fallback_notice,omitempty"`
	OutOfCorpus      bool             `json:"out_of_corpus"`
}

// QueryAnalysis holds query rephrasings (original first) and the graph
// traversal complexity classification.
type QueryAnalysis struct {
	Variants     []string     `json:"variants"`
	KGComplexity KGComplexity `json:"kg_complexity"`
	Use2Hop      bool         `json:"use_2hop"`
}

// GraphDocumentRef points at one document page surfaced by graph traversal.
type GraphDocumentRef struct {
	DocumentID string
	Page       int
	// RelatedTo names the intermediate entity for 2-hop matches.
	RelatedTo string
}

// GraphEvidence maps a document id (or "docID:page" key) to the entity
// evidence that matched it during graph lookup.
type GraphEvidence map[string]KGEvidence

// EvidenceFor resolves KG evidence for a candidate, preferring the exact
// page key over the whole-document key.
func (g GraphEvidence) EvidenceFor(md ChunkMetadata) (KGEvidence, bool) {
	if len(g) == 0 {
		return KGEvidence{}, false
	}
	if md.DocumentID != "" && md.PageStart > 0 {
		if ev, ok := g[fmt.Sprintf("%s:%d", md.DocumentID, md.PageStart)]; ok {
			return ev, true
		}
	}
	if md.DocumentID != "" {
		if ev, ok := g[md.DocumentID]; ok {
			return ev, true
		}
	}
	return KGEvidence{}, false
}

type Answer struct {
	Text      string           `json:"text"`
	Citations []string         `json:"citations"`
	Sources   []FusedCandidate `json:"sources"`
}
