package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadNoteTemplate reads a template definition from a YAML file and
// validates it.
func LoadNoteTemplate(path string) (*NoteTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var tpl NoteTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parse template yaml: %w", err)
	}
	if err := ValidateTemplate(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ValidateTemplate checks structural invariants: a non-empty id, at least
// one section, unique keys, non-empty titles, and known formats. Missing
// formats default to paragraph; missing orders default to position.
func ValidateTemplate(tpl *NoteTemplate) error {
	if strings.TrimSpace(tpl.ID) == "" {
		return fmt.Errorf("template id is required")
	}
	if len(tpl.Sections) == 0 {
		return fmt.Errorf("template %s has no sections", tpl.ID)
	}

	seen := make(map[string]bool, len(tpl.Sections))
	for i := range tpl.Sections {
		s := &tpl.Sections[i]
		s.Key = strings.TrimSpace(s.Key)
		if s.Key == "" {
			return fmt.Errorf("template %s: section %d has no key", tpl.ID, i)
		}
		if seen[s.Key] {
			return fmt.Errorf("template %s: duplicate section key '%s'", tpl.ID, s.Key)
		}
		seen[s.Key] = true
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("template %s: section '%s' has no title", tpl.ID, s.Key)
		}
		switch s.Format {
		case FormatParagraph, FormatBullets, FormatNumbered:
		case "":
			s.Format = FormatParagraph
		default:
			return fmt.Errorf("template %s: section '%s' has unknown format '%s'", tpl.ID, s.Key, s.Format)
		}
		if s.Order == 0 {
			s.Order = i + 1
		}
	}
	return nil
}

// OrderedSections returns the template's sections sorted by their assembly
// order. The template itself is not mutated.
func (t *NoteTemplate) OrderedSections() []TemplateSection {
	out := make([]TemplateSection, len(t.Sections))
	copy(out, t.Sections)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// SectionByKey returns the section with the given key, or nil.
func (t *NoteTemplate) SectionByKey(key string) *TemplateSection {
	for i := range t.Sections {
		if t.Sections[i].Key == key {
			return &t.Sections[i]
		}
	}
	return nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
