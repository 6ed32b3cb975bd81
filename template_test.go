package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateTemplateDefaults(t *testing.T) {
	tpl := &NoteTemplate{
		ID:   "proc",
		Name: "Procedure Note",
		Sections: []TemplateSection{
			{Key: "indication", Title: "Indication"},
			{Key: "procedure", Title: "Procedure", Format: FormatNumbered, Order: 5},
			{Key: "findings", Title: "Findings", Format: FormatBullets},
		},
	}
	if err := ValidateTemplate(tpl); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
	if tpl.Sections[0].Format != FormatParagraph {
		t.Fatalf("missing format must default to paragraph, got %s", tpl.Sections[0].Format)
	}
	if tpl.Sections[0].Order != 1 || tpl.Sections[2].Order != 3 {
		t.Fatalf("missing order must default to position: %+v", tpl.Sections)
	}
	if tpl.Sections[1].Order != 5 {
		t.Fatalf("explicit order overwritten: %+v", tpl.Sections[1])
	}
}

func TestValidateTemplateRejections(t *testing.T) {
	cases := []struct {
		name string
		tpl  NoteTemplate
		want string
	}{
		{
			name: "missing id",
			tpl:  NoteTemplate{Sections: []TemplateSection{{Key: "a", Title: "A"}}},
			want: "id is required",
		},
		{
			name: "no sections",
			tpl:  NoteTemplate{ID: "empty"},
			want: "no sections",
		},
		{
			name: "duplicate key",
			tpl: NoteTemplate{ID: "dup", Sections: []TemplateSection{
				{Key: "plan", Title: "Plan"},
				{Key: "plan", Title: "Plan Again"},
			}},
			want: "duplicate section key",
		},
		{
			name: "missing title",
			tpl: NoteTemplate{ID: "untitled", Sections: []TemplateSection{
				{Key: "plan"},
			}},
			want: "has no title",
		},
		{
			name: "unknown format",
			tpl: NoteTemplate{ID: "fmt", Sections: []TemplateSection{
				{Key: "plan", Title: "Plan", Format: "table"},
			}},
			want: "unknown format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTemplate(&tc.tpl)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadNoteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardiology.yaml")
	yamlDoc := `id: cardiology-followup
name: Cardiology Follow-Up
specialty: cardiology
sections:
  - key: chiefComplaint
    title: Chief Complaint
    required: true
    ai_instructions: One line reason for visit.
  - key: ekgFindings
    title: EKG Findings
    format: bullets
  - key: plan
    title: Plan
    required: true
    format: numbered
    order: 10
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tpl, err := LoadNoteTemplate(path)
	if err != nil {
		t.Fatalf("LoadNoteTemplate failed: %v", err)
	}
	if tpl.ID != "cardiology-followup" || tpl.Specialty != "cardiology" {
		t.Fatalf("template metadata wrong: %+v", tpl)
	}
	if len(tpl.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(tpl.Sections))
	}
	if !tpl.Sections[0].Required || tpl.Sections[1].Required {
		t.Fatalf("required flags wrong: %+v", tpl.Sections)
	}
	if tpl.Sections[1].Format != FormatBullets {
		t.Fatalf("format not parsed: %+v", tpl.Sections[1])
	}

	ordered := tpl.OrderedSections()
	if ordered[len(ordered)-1].Key != "plan" {
		t.Fatalf("explicit order 10 must sort last: %+v", ordered)
	}

	if s := tpl.SectionByKey("ekgFindings"); s == nil || s.Title != "EKG Findings" {
		t.Fatalf("SectionByKey failed: %+v", s)
	}
	if tpl.SectionByKey("missing") != nil {
		t.Fatalf("SectionByKey must return nil for unknown key")
	}
}

func TestLoadNoteTemplateBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("sections: [unclosed"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadNoteTemplate(path); err == nil {
		t.Fatalf("expected yaml parse error")
	}
}
