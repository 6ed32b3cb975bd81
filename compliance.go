package main

import (
	"context"
	"strings"
)

// Phrases that count as placeholder content rather than substance.
var placeholderPhrases = []string{
	"not mentioned",
	"not discussed",
	"not addressed",
	"not applicable",
	"not assessed",
	"none mentioned",
	"nothing mentioned",
	"no information",
	"n/a",
	"na",
	"none",
	"pending",
	"see above",
	"see below",
	"to be determined",
	"tbd",
	"unknown",
	"[not mentioned in transcription]",
}

// ValidateCompliance checks every required template section: missing when
// absent or empty, partial when placeholder-only, thinner than minChars, or
// punctuation/bullets with no substantive text. Compliant only when both
// lists are empty.
func ValidateCompliance(sections SectionMap, tpl *NoteTemplate, minChars int) ComplianceResult {
	result := ComplianceResult{Compliant: true}
	if tpl == nil {
		return result
	}

	for _, s := range tpl.OrderedSections() {
		if !s.Required {
			continue
		}
		content, ok := sections[s.Key]
		content = strings.TrimSpace(content)
		if !ok || content == "" {
			result.MissingSections = append(result.MissingSections, s.Title)
			continue
		}
		if isPlaceholderContent(content) || substantiveLength(content) < minChars {
			result.PartialSections = append(result.PartialSections, s.Title)
		}
	}

	result.Compliant = len(result.MissingSections) == 0 && len(result.PartialSections) == 0
	return result
}

// isPlaceholderContent reports whether the whole section is one of the
// known placeholder phrases (ignoring case, brackets and trailing periods).
func isPlaceholderContent(content string) bool {
	normalized := strings.ToLower(strings.TrimSpace(content))
	normalized = strings.Trim(normalized, "[]().- ")
	for _, phrase := range placeholderPhrases {
		cleaned := strings.Trim(phrase, "[]")
		if normalized == cleaned || normalized == cleaned+"." {
			return true
		}
	}
	return false
}

// substantiveLength counts letters and digits, skipping bullets, list
// numbering and punctuation, so "- \n- \n" scores zero.
func substantiveLength(content string) int {
	n := 0
	for _, r := range content {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// enforceCompliance re-generates non-compliant notes with escalating
// emphasis, up to the configured retry ceiling. Extracted orders from the
// first pass are preserved: regeneration replaces prose, not orders. A
// failing retry stops the loop and keeps the best prior result.
func (p *Pipeline) enforceCompliance(ctx context.Context, note *ProcessedNote, req NoteRequest) ComplianceResult {
	result := ValidateCompliance(note.Sections, req.Template, p.cfg.MinSectionChars)
	if result.Compliant {
		return result
	}

	for attempt := 1; attempt <= p.cfg.ComplianceRetries; attempt++ {
		p.logger.Warn("note non-compliant, regenerating",
			"component", "compliance", "attempt", attempt,
			"missing", result.MissingSections, "partial", result.PartialSections)

		emphasis := &EmphasisDirective{
			MissingSections: result.MissingSections,
			PartialSections: result.PartialSections,
			Attempt:         attempt,
		}
		systemPrompt, userPrompt := buildNotePrompts(PromptRequest{
			Transcript:        req.Transcript,
			Patient:           req.Patient,
			Template:          req.Template,
			AdditionalContext: req.AdditionalContext,
			Emphasis:          emphasis,
			SpecialtyRole:     p.cfg.SpecialtyRole,
		})

		invoke, err := p.chain.Invoke(ctx, p.modelRequest(systemPrompt, userPrompt, attempt), p.cfg.MaxRetries)
		if err != nil {
			p.logger.Error("compliance retry failed, keeping best prior note",
				"component", "compliance", "attempt", attempt, "error", err)
			return result
		}
		sections, err := ParseModelResponse(invoke.Content, req.Template)
		if err != nil {
			p.logger.Error("compliance retry unparseable, keeping best prior note",
				"component", "compliance", "attempt", attempt, "error", err)
			return result
		}
		stripVerbatimCopies(sections, req.Transcript)

		note.Sections = sections
		note.Metadata.Provider = invoke.Provider
		note.Metadata.ModelUsed = invoke.Model
		note.Metadata.RetryCount += invoke.Retries + 1

		result = ValidateCompliance(note.Sections, req.Template, p.cfg.MinSectionChars)
		if result.Compliant {
			return result
		}
	}

	p.logger.Warn("compliance ceiling reached, releasing best available note",
		"component", "compliance",
		"missing", result.MissingSections, "partial", result.PartialSections)
	return result
}
