package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// headerRule maps one normalized header spelling to a section key. The
// table is explicit so individual spellings can be unit tested.
type headerRule struct {
	header string // normalized: lower case, no decoration, no trailing colon
	key    string
}

// SOAP headers plus the abbreviations clinicians dictate.
var soapHeaderRules = []headerRule{
	{"chief complaint", "chiefComplaint"},
	{"cc", "chiefComplaint"},
	{"history of present illness", "historyOfPresentIllness"},
	{"hpi", "historyOfPresentIllness"},
	{"review of systems", "reviewOfSystems"},
	{"ros", "reviewOfSystems"},
	{"past medical history", "pastMedicalHistory"},
	{"pmh", "pastMedicalHistory"},
	{"medical history", "pastMedicalHistory"},
	{"medications", "medications"},
	{"current medications", "medications"},
	{"meds", "medications"},
	{"allergies", "allergies"},
	{"nkda", "allergies"},
	{"social history", "socialHistory"},
	{"sh", "socialHistory"},
	{"family history", "familyHistory"},
	{"fh", "familyHistory"},
	{"physical exam", "physicalExam"},
	{"physical examination", "physicalExam"},
	{"exam", "physicalExam"},
	{"pe", "physicalExam"},
	{"objective", "physicalExam"},
	{"subjective", "historyOfPresentIllness"},
	{"assessment", "assessment"},
	{"impression", "assessment"},
	{"assessment and plan", "assessment"},
	{"a&p", "assessment"},
	{"plan", "plan"},
	{"treatment plan", "plan"},
}

// ParseModelResponse converts raw model output into a SectionMap. JSON
// output (after stripping markdown fences) is taken directly; anything else
// is segmented line by line against a header table. A nil template selects
// the SOAP vocabulary.
func ParseModelResponse(raw string, tpl *NoteTemplate) (SectionMap, error) {
	text := trimCodeFences(raw)
	if text == "" {
		return nil, &ParseError{Detail: "empty model response", Response: raw}
	}

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		if sections, err := parseJSONSections(text, tpl); err == nil {
			return sections, nil
		}
		// JSON looked plausible but did not parse; degrade to prose
		// segmentation rather than failing the run.
	}

	sections := parseProseSections(text, tpl)
	if len(sections) == 0 {
		return nil, &ParseError{Detail: "no recognizable sections in response", Response: raw}
	}
	return sections, nil
}

func trimCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// jsonEnvelope accepts both {"sections": {...}} and a bare key->content
// object.
type jsonEnvelope struct {
	Sections map[string]json.RawMessage `json:"sections"`
}

func parseJSONSections(text string, tpl *NoteTemplate) (SectionMap, error) {
	var envelope jsonEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Sections) > 0 {
		return coerceSections(envelope.Sections, tpl)
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &flat); err != nil {
		return nil, fmt.Errorf("unmarshal sections: %w", err)
	}
	delete(flat, "sections")
	return coerceSections(flat, tpl)
}

// coerceSections resolves model-supplied keys against the known vocabulary
// and flattens values to text. Unknown keys are dropped.
func coerceSections(raw map[string]json.RawMessage, tpl *NoteTemplate) (SectionMap, error) {
	keyIndex := buildKeyIndex(tpl)
	sections := make(SectionMap)
	for k, v := range raw {
		key, ok := keyIndex[normalizeHeader(k)]
		if !ok {
			continue
		}
		content := strings.TrimSpace(coerceText(v))
		if content != "" {
			sections[key] = content
		}
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no known section keys in JSON response")
	}
	return sections, nil
}

// coerceText flattens a JSON value to plain text: strings pass through,
// arrays join with newlines, objects render as "label: value" lines.
func coerceText(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var asSlice []json.RawMessage
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		var parts []string
		for _, item := range asSlice {
			if s := strings.TrimSpace(coerceText(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		var parts []string
		for k, v := range asMap {
			if s := strings.TrimSpace(coerceText(v)); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "\n")
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%f", asNumber), "000000"), ".")
	}
	return ""
}

// buildKeyIndex maps normalized keys and titles to canonical section keys.
func buildKeyIndex(tpl *NoteTemplate) map[string]string {
	idx := make(map[string]string)
	if tpl != nil {
		for _, s := range tpl.Sections {
			idx[normalizeHeader(s.Key)] = s.Key
			idx[normalizeHeader(s.Title)] = s.Key
		}
		return idx
	}
	for _, key := range soapSectionKeys {
		idx[normalizeHeader(key)] = key
		idx[normalizeHeader(soapSectionTitles[key])] = key
	}
	for _, rule := range soapHeaderRules {
		idx[rule.header] = rule.key
	}
	return idx
}

// parseProseSections scans prose line by line. A recognized header closes
// the previous section and opens a new one; lines before any header are
// discarded.
func parseProseSections(text string, tpl *NoteTemplate) SectionMap {
	rules := headerRulesFor(tpl)
	sections := make(SectionMap)

	currentKey := ""
	var buf []string
	flush := func() {
		if currentKey == "" {
			return
		}
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content != "" {
			if existing := sections[currentKey]; existing != "" {
				content = existing + "\n" + content
			}
			sections[currentKey] = content
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if key, rest, ok := matchHeader(line, rules); ok {
			flush()
			currentKey = key
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if currentKey != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return sections
}

func headerRulesFor(tpl *NoteTemplate) []headerRule {
	if tpl == nil {
		return soapHeaderRules
	}
	rules := make([]headerRule, 0, len(tpl.Sections)*2)
	for _, s := range tpl.Sections {
		rules = append(rules,
			headerRule{normalizeHeader(s.Title), s.Key},
			headerRule{normalizeHeader(s.Key), s.Key})
	}
	return rules
}

// matchHeader reports whether the line is a section header. Inline content
// after "Header: content" is returned as rest.
func matchHeader(line string, rules []headerRule) (key, rest string, ok bool) {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return "", "", false
	}

	head := stripped
	if idx := strings.Index(stripped, ":"); idx >= 0 {
		head = stripped[:idx]
		rest = strings.TrimSpace(strings.Trim(stripped[idx+1:], "* "))
	} else {
		rest = ""
	}

	normalized := normalizeHeader(head)
	if normalized == "" {
		return "", "", false
	}
	for _, rule := range rules {
		if rule.header == normalized {
			return rule.key, rest, true
		}
	}
	return "", "", false
}

// normalizeHeader lower-cases and strips markdown decoration, numbering and
// the trailing colon from a candidate header.
func normalizeHeader(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimLeft(s, "#*-• \t")
	for len(s) > 0 && (s[0] >= '0' && s[0] <= '9') {
		s = s[1:]
		s = strings.TrimLeft(s, ".) ")
	}
	s = strings.TrimRight(s, ":* \t")
	return strings.TrimSpace(s)
}
