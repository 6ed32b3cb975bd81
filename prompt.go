package main

import (
	"fmt"
	"strings"
)

// EmphasisDirective names the sections a compliance retry must recover.
// Attempt is 1-based: the first retry warns, later retries escalate.
type EmphasisDirective struct {
	MissingSections []string // section titles
	PartialSections []string
	Attempt         int
}

// Severity returns the escalation keyword for the current attempt.
func (e EmphasisDirective) Severity() string {
	switch {
	case e.Attempt <= 1:
		return "WARNING"
	case e.Attempt == 2:
		return "CRITICAL"
	default:
		return "URGENT"
	}
}

// PromptRequest bundles everything the prompt builder needs. Building is a
// pure function of this struct.
type PromptRequest struct {
	Transcript        string
	Patient           PatientContext
	Template          *NoteTemplate // nil selects the default SOAP schema
	AdditionalContext string
	Emphasis          *EmphasisDirective
	SpecialtyRole     string
}

// Speaker tags that mark a transcript as a conversation rather than a
// dictation.
var conversationMarkers = []string{
	"doctor:", "patient:", "physician:", "clinician:", "provider:",
	"speaker 1:", "speaker 2:", "interviewer:",
}

const noteRules = `Rules:
1. Extract ALL clinical information from the transcript; do not omit details.
2. Use exact numeric values as dictated (doses, vitals, lab values, dates).
3. Never write a "not mentioned" placeholder for a section when the transcript contains data for it.
4. Document a condition as definitive only when it is explicitly stated. When a condition is inferred solely from medication or lab mentions, append "(possible)" to it.
5. Do not invent findings, values, or history that were not dictated.`

// buildNotePrompts returns the system and user prompt for one note
// generation call. Template mode emits one instruction block per section;
// default mode emits the fixed SOAP JSON schema. An emphasis directive, when
// present, is placed directly before the rules for maximum salience.
func buildNotePrompts(req PromptRequest) (string, string) {
	systemPrompt := fmt.Sprintf(
		"You are %s converting spoken medical dictation into a structured clinical note. Respond with JSON only (no markdown).",
		strings.TrimSpace(req.SpecialtyRole))

	var b strings.Builder

	if req.Patient.Name != "" || req.Patient.MRN != "" || req.Patient.DOB != "" {
		b.WriteString("Patient context:\n")
		if req.Patient.Name != "" {
			b.WriteString("- Name: " + req.Patient.Name + "\n")
		}
		if req.Patient.MRN != "" {
			b.WriteString("- MRN: " + req.Patient.MRN + "\n")
		}
		if req.Patient.DOB != "" {
			b.WriteString("- DOB: " + req.Patient.DOB + "\n")
		}
		b.WriteString("\n")
	}

	if req.AdditionalContext != "" {
		b.WriteString("Additional context:\n" + strings.TrimSpace(req.AdditionalContext) + "\n\n")
	}

	if req.Template != nil {
		writeTemplateBlocks(&b, req.Template)
	} else {
		writeSOAPBlock(&b, req.Transcript)
	}

	if req.Emphasis != nil {
		writeEmphasisBlock(&b, *req.Emphasis)
	}

	b.WriteString(noteRules)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(req.Transcript)

	return systemPrompt, b.String()
}

func writeTemplateBlocks(b *strings.Builder, tpl *NoteTemplate) {
	b.WriteString("Produce a note with the following sections. Respond as JSON: {\"sections\": {<key>: <content>, ...}} using exactly these keys.\n\n")
	for _, s := range tpl.OrderedSections() {
		flag := "optional"
		if s.Required {
			flag = "REQUIRED"
		}
		fmt.Fprintf(b, "Section %q - %s (%s)\n", s.Key, s.Title, flag)
		if strings.TrimSpace(s.AIInstructions) != "" {
			b.WriteString("Instructions: " + strings.TrimSpace(s.AIInstructions) + "\n")
		}
		if len(s.Keywords) > 0 {
			b.WriteString("Look for: " + strings.Join(s.Keywords, ", ") + "\n")
		}
		if strings.TrimSpace(s.ExampleText) != "" {
			b.WriteString("Example structure:\n" + strings.TrimSpace(s.ExampleText) + "\n")
		}
		b.WriteString("Format: " + formatDirective(s.Format) + "\n\n")
	}
}

func formatDirective(f SectionFormat) string {
	switch f {
	case FormatBullets:
		return "bullet points, one finding per line"
	case FormatNumbered:
		return "numbered list"
	default:
		return "paragraph prose"
	}
}

func writeSOAPBlock(b *strings.Builder, transcript string) {
	if isConversational(transcript) {
		b.WriteString("The transcript is a conversation between a clinician and a patient. Distill it into a clinical note.\n")
	} else {
		b.WriteString("The transcript is a physician's dictation. Structure it into a clinical note.\n")
	}
	b.WriteString("Respond as JSON with exactly these keys (use an empty string for sections with no content):\n{\"sections\": {")
	for i, key := range soapSectionKeys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%q: \"...\"", key)
	}
	b.WriteString("}}\n\n")
}

func writeEmphasisBlock(b *strings.Builder, e EmphasisDirective) {
	severity := e.Severity()
	if len(e.MissingSections) > 0 {
		fmt.Fprintf(b, "%s: Missing REQUIRED sections:\n", severity)
		for _, title := range e.MissingSections {
			b.WriteString("- " + title + "\n")
		}
		b.WriteString("Every one of these sections MUST contain substantive content extracted from the transcript.\n\n")
	}
	if len(e.PartialSections) > 0 {
		fmt.Fprintf(b, "%s: These sections were empty or placeholder-only and must be completed:\n", severity)
		for _, title := range e.PartialSections {
			b.WriteString("- " + title + "\n")
		}
		b.WriteString("\n")
	}
}

func isConversational(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, marker := range conversationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
