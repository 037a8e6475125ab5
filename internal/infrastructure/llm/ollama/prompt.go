package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

func buildAnalysisPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You rewrite search queries over SEC filings and earnings documents.\n")
	b.WriteString("Produce up to 3 alternate phrasings of the question below. Each variant must keep ")
	b.WriteString("the same intent but vary the wording: expand abbreviations, use filing terminology, ")
	b.WriteString("or restate the metric being asked about. Do not include the original question.\n")
	b.WriteString("Also classify the question for knowledge-graph traversal:\n")
	b.WriteString("- \"simple\": asks about one company or one document\n")
	b.WriteString("- \"complex\": asks about relationships between companies, supply chains, or comparisons\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"variants": ["...", "..."], "kg_complexity": "simple"}`)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

func buildJudgePrompt(query, passage string) string {
	var b strings.Builder
	b.WriteString("Rate how relevant the passage is to the question on a scale of 1 to 10.\n")
	b.WriteString("1 means unrelated, 5 means mentions the topic without answering, ")
	b.WriteString("10 means the passage directly answers the question.\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"score": 7}`)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nPassage:\n")
	b.WriteString(passage)
	return b.String()
}

func buildCompressionPrompt(query, passage string) string {
	var b strings.Builder
	b.WriteString("Extract the sentences from the passage that help answer the question.\n")
	b.WriteString("Copy sentences verbatim. Do not paraphrase, do not add sentences that are not ")
	b.WriteString("in the passage. If nothing is relevant, return an empty list.\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"relevant_sentences": ["...", "..."]}`)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nPassage:\n")
	b.WriteString(passage)
	return b.String()
}

func buildAnswerPrompt(question string, candidates []domain.FusedCandidate) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the numbered context passages below.\n")
	b.WriteString("Cite passages inline as [1], [2] and so on. If the context does not contain ")
	b.WriteString("the answer, say so plainly instead of guessing.\n\n")

	for i, candidate := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, passageText(candidate))
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// passageText prefers the compressed extract, then the hydrated parent
// section, then the raw child chunk.
func passageText(candidate domain.FusedCandidate) string {
	if candidate.CompressedText != "" {
		return candidate.CompressedText
	}
	if candidate.ParentText != "" {
		return candidate.ParentText
	}
	return candidate.ChildText
}
