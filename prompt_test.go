package main

import (
	"strings"
	"testing"
)

func diabetesTemplate() *NoteTemplate {
	return &NoteTemplate{
		ID:   "diabetes-followup",
		Name: "Diabetes Follow-Up",
		Sections: []TemplateSection{
			{Key: "cc", Title: "Chief Complaint", Required: true, Order: 1, Format: FormatParagraph},
			{Key: "hpi", Title: "History of Present Illness", Required: true, Order: 2,
				AIInstructions: "Summarize interval history including home glucose readings.",
				Keywords:       []string{"blood sugar", "A1c", "diet"}, Format: FormatParagraph},
			{Key: "meds", Title: "Medications", Required: false, Order: 3, Format: FormatBullets},
			{Key: "plan", Title: "Plan", Required: true, Order: 4, Format: FormatNumbered,
				ExampleText: "1. Medication changes\n2. Labs to order"},
		},
	}
}

func TestBuildNotePromptsTemplateMode(t *testing.T) {
	system, user := buildNotePrompts(PromptRequest{
		Transcript:    "Patient doing well on metformin.",
		Patient:       PatientContext{Name: "Jordan Kim", MRN: "MRN-7781"},
		Template:      diabetesTemplate(),
		SpecialtyRole: "an experienced endocrinologist",
	})

	if !strings.Contains(system, "an experienced endocrinologist") {
		t.Fatalf("system prompt missing specialty role: %q", system)
	}
	for _, want := range []string{
		`Section "cc" - Chief Complaint (REQUIRED)`,
		`Section "meds" - Medications (optional)`,
		"Look for: blood sugar, A1c, diet",
		"Format: bullet points, one finding per line",
		"Format: numbered list",
		"Example structure:\n1. Medication changes",
		"Use exact numeric values",
		"Jordan Kim",
		"MRN-7781",
		"Patient doing well on metformin.",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestBuildNotePromptsSOAPMode(t *testing.T) {
	_, user := buildNotePrompts(PromptRequest{
		Transcript:    "Follow up visit for hypertension. Blood pressure 150 over 90.",
		SpecialtyRole: "an experienced physician",
	})

	if !strings.Contains(user, "physician's dictation") {
		t.Fatalf("dictation framing missing:\n%s", user)
	}
	for _, key := range soapSectionKeys {
		if !strings.Contains(user, `"`+key+`"`) {
			t.Fatalf("SOAP schema missing key %q:\n%s", key, user)
		}
	}
}

func TestBuildNotePromptsConversationalFraming(t *testing.T) {
	_, user := buildNotePrompts(PromptRequest{
		Transcript:    "Doctor: How are the sugars?\nPatient: Better since the new dose.",
		SpecialtyRole: "an experienced physician",
	})
	if !strings.Contains(user, "conversation between a clinician and a patient") {
		t.Fatalf("conversational framing missing:\n%s", user)
	}
}

func TestBuildNotePromptsEmphasisBlock(t *testing.T) {
	_, user := buildNotePrompts(PromptRequest{
		Transcript: "short dictation",
		Template:   diabetesTemplate(),
		Emphasis: &EmphasisDirective{
			MissingSections: []string{"Chief Complaint"},
			PartialSections: []string{"Plan"},
			Attempt:         1,
		},
		SpecialtyRole: "an experienced physician",
	})

	if !strings.Contains(user, "WARNING: Missing REQUIRED sections:\n- Chief Complaint") {
		t.Fatalf("emphasis block missing or malformed:\n%s", user)
	}
	if !strings.Contains(user, "- Plan") {
		t.Fatalf("partial sections missing from emphasis block:\n%s", user)
	}
	// Emphasis must sit directly before the rules for salience.
	emphasisIdx := strings.Index(user, "WARNING:")
	rulesIdx := strings.Index(user, "Rules:")
	if emphasisIdx < 0 || rulesIdx < emphasisIdx {
		t.Fatalf("emphasis block must precede the rules:\n%s", user)
	}
}

func TestEmphasisSeverityEscalates(t *testing.T) {
	cases := map[int]string{1: "WARNING", 2: "CRITICAL", 3: "URGENT", 5: "URGENT"}
	for attempt, want := range cases {
		e := EmphasisDirective{Attempt: attempt}
		if got := e.Severity(); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}
