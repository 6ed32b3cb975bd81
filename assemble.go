package main

import (
	"context"
	"fmt"
	"strings"
)

// Marker rendered for required sections that stayed empty after the retry
// ceiling. Making the gap visible beats silently dropping the section.
const notMentionedMarker = "[Not mentioned in transcription]"

// Replacement for sections that are raw transcript paste rather than a
// formatted note.
const verbatimReplacement = "See transcript for details"

// A verbatim run of at least this many consecutive transcript words marks a
// section as unformatted paste.
const verbatimRunLength = 10

// BillingAnalyzer is the external CPT/ICD-10 collaborator. It receives the
// transcript plus the note's section content and returns a preformatted
// billing block appended verbatim to the note.
type BillingAnalyzer interface {
	AnalyzeBilling(ctx context.Context, transcript string, sections SectionMap) (string, error)
}

// NoopBillingAnalyzer satisfies BillingAnalyzer when no billing service is
// wired in.
type NoopBillingAnalyzer struct{}

func (NoopBillingAnalyzer) AnalyzeBilling(context.Context, string, SectionMap) (string, error) {
	return "", nil
}

// stripVerbatimCopies replaces sections that are unformatted verbatim
// transcript paste. A section with bullet, colon or numbered structure, or
// medical units, is legitimate content even at high word overlap.
func stripVerbatimCopies(sections SectionMap, transcript string) {
	transcriptWords := tokenizeWords(transcript)
	if len(transcriptWords) < verbatimRunLength {
		return
	}
	grams := make(map[string]bool)
	for i := 0; i+verbatimRunLength <= len(transcriptWords); i++ {
		grams[strings.Join(transcriptWords[i:i+verbatimRunLength], " ")] = true
	}

	for key, content := range sections {
		if hasNoteStructure(content) {
			continue
		}
		words := tokenizeWords(content)
		for i := 0; i+verbatimRunLength <= len(words); i++ {
			if grams[strings.Join(words[i:i+verbatimRunLength], " ")] {
				sections[key] = verbatimReplacement
				break
			}
		}
	}
}

// hasNoteStructure reports whether content shows deliberate formatting:
// bullets, numbered lines, label colons, or dosage units.
func hasNoteStructure(content string) bool {
	if dosagePattern.MatchString(content) {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "*") {
			return true
		}
		if len(trimmed) > 2 && trimmed[0] >= '0' && trimmed[0] <= '9' && (trimmed[1] == '.' || trimmed[1] == ')') {
			return true
		}
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx < 40 {
			return true
		}
	}
	return false
}

func tokenizeWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// AssembleNote renders the final note text: sections in template order (or
// SOAP order), required-but-empty sections as explicit markers, then the
// orders block. The billing block is appended by the pipeline because it
// needs the external collaborator.
func AssembleNote(sections SectionMap, tpl *NoteTemplate, orders *OrderExtractionResult) string {
	var b strings.Builder

	if tpl != nil {
		for _, s := range tpl.OrderedSections() {
			content := strings.TrimSpace(sections[s.Key])
			if content == "" {
				if !s.Required {
					continue
				}
				content = notMentionedMarker
			}
			writeSection(&b, s.Title, content)
		}
	} else {
		for _, key := range soapSectionKeys {
			content := strings.TrimSpace(sections[key])
			if content == "" {
				continue
			}
			writeSection(&b, soapSectionTitles[key], content)
		}
	}

	if orders != nil && orders.Total() > 0 {
		writeOrdersBlock(&b, orders)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, title, content string) {
	b.WriteString(strings.ToUpper(title))
	b.WriteString(":\n")
	b.WriteString(content)
	b.WriteString("\n\n")
}

var ordersBlockCategories = []struct {
	label string
	pick  func(*OrderExtractionResult) []ExtractedOrder
}{
	{"Medications", func(r *OrderExtractionResult) []ExtractedOrder { return r.Medications }},
	{"Labs", func(r *OrderExtractionResult) []ExtractedOrder { return r.Labs }},
	{"Imaging", func(r *OrderExtractionResult) []ExtractedOrder { return r.Imaging }},
	{"Prior Authorizations", func(r *OrderExtractionResult) []ExtractedOrder { return r.PriorAuth }},
	{"Referrals", func(r *OrderExtractionResult) []ExtractedOrder { return r.Referrals }},
	{"Other", func(r *OrderExtractionResult) []ExtractedOrder { return r.Other }},
}

func writeOrdersBlock(b *strings.Builder, orders *OrderExtractionResult) {
	b.WriteString("ORDERS & ACTIONS:\n")
	for _, category := range ordersBlockCategories {
		items := category.pick(orders)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s:\n", category.label)
		for _, order := range items {
			if order.Action != "" {
				fmt.Fprintf(b, "- [%s] %s\n", strings.ToUpper(string(order.Action)), order.Text)
			} else {
				fmt.Fprintf(b, "- %s\n", order.Text)
			}
		}
	}
	b.WriteString("\n")
}
