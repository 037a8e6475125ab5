package domain

import (
	"fmt"
	"math"
	"strings"
)

// FormatCitation renders the user-facing source line for one candidate.
// Filings use "[i] Source: {ticker} 10-K {fiscal_year}, {section}, Page {p}",
// reference documents fall back to "{source_name}: {headline}, Page {p}".
func FormatCitation(index int, c FusedCandidate) string {
	md := c.Metadata
	page := md.PageStart

	var b strings.Builder
	if md.Ticker != "" {
		docType := md.DocType
		if docType == "" {
			docType = "10-K"
		}
		fmt.Fprintf(&b, "[%d] Source: %s %s %d, %s, Page %d", index, md.Ticker, docType, md.FiscalYear, md.Section, page)
	} else {
		source := md.SourceName
		if source == "" {
			source = "Reference"
		}
		fmt.Fprintf(&b, "[%d] %s: %s, Page %d", index, source, md.Headline, page)
	}

	if rel := c.RelevanceDisplay(); rel != "" {
		fmt.Fprintf(&b, " (relevance: %s)", rel)
	}
	return b.String()
}

// RelevanceDisplay shows the judge score when reranked, or a 1-10 proxy
// scaled from the fused score in dense-only runs.
func (c FusedCandidate) RelevanceDisplay() string {
	if c.RelevanceScore >= 1 && c.RelevanceScore <= 10 {
		return fmt.Sprintf("%d/10", c.RelevanceScore)
	}
	if c.Score <= 0 {
		return ""
	}
	proxy := int(math.Round(c.Score * 10))
	if proxy < 1 {
		proxy = 1
	}
	if proxy > 10 {
		proxy = 10
	}
	return fmt.Sprintf("%d/10", proxy)
}
