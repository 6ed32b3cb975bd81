package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Hedging language suggests the model generated generic content instead of
// extracting from the dictation.
var hedgingPhrases = []string{
	"for example",
	"typically",
	"may include",
	"might include",
	"such as",
	"in general",
	"usually",
	"commonly",
	"it is possible that",
	"as appropriate",
}

// Clinically significant numeric tokens: ages, glucose/A1C/BP/weight
// readings, doses. Blood pressures keep the slash so "120/80" is one token;
// no trailing boundary so "500" is still captured out of "500mg".
var clinicalNumberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?(?:/\d+(?:\.\d+)?)?`)

// Pairwise section word-overlap above this ratio counts as duplication.
const duplicationThreshold = 0.8

// Sections shorter than this are too small for overlap comparison to mean
// anything.
const duplicationMinWords = 8

// AssessQuality runs the advisory heuristic pass: hallucination markers,
// numeric-value loss against the transcript, placeholder leakage, and
// inter-section duplication. The result is logged by the caller and never
// blocks output.
func AssessQuality(note *ProcessedNote, transcript string) QualityResult {
	confidence := 1.0
	var issues []string

	lowerNote := strings.ToLower(note.Formatted)

	var hedges []string
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lowerNote, phrase) {
			hedges = append(hedges, phrase)
		}
	}
	if len(hedges) > 0 {
		confidence -= 0.15
		issues = append(issues, fmt.Sprintf("hedging language present: %s", strings.Join(hedges, ", ")))
	}

	if missing := missingNumbers(transcript, note.Formatted); len(missing) > 0 {
		penalty := 0.1 * float64(len(missing))
		if penalty > 0.3 {
			penalty = 0.3
		}
		confidence -= penalty
		issues = append(issues, fmt.Sprintf("numeric values from transcript absent in note: %s", strings.Join(missing, ", ")))
	}

	for key, content := range note.Sections {
		if isPlaceholderContent(content) {
			confidence -= 0.1
			issues = append(issues, fmt.Sprintf("section %q contains placeholder content", key))
		}
	}

	if pairs := duplicatedSectionPairs(note.Sections); len(pairs) > 0 {
		confidence -= 0.15
		issues = append(issues, fmt.Sprintf("high content overlap between sections: %s", strings.Join(pairs, "; ")))
	}

	if confidence < 0 {
		confidence = 0
	}

	return QualityResult{
		Quality:    bucketFor(confidence),
		Issues:     issues,
		Confidence: confidence,
	}
}

func bucketFor(confidence float64) QualityBucket {
	switch {
	case confidence >= 0.9:
		return QualityExcellent
	case confidence >= 0.7:
		return QualityGood
	default:
		return QualityPoor
	}
}

// missingNumbers returns transcript numbers that appear nowhere in the note.
func missingNumbers(transcript, noteText string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, num := range clinicalNumberPattern.FindAllString(transcript, -1) {
		if seen[num] {
			continue
		}
		seen[num] = true
		if !strings.Contains(noteText, num) {
			missing = append(missing, num)
		}
	}
	return missing
}

// duplicatedSectionPairs finds section pairs whose word overlap exceeds the
// duplication threshold.
func duplicatedSectionPairs(sections SectionMap) []string {
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}

	var pairs []string
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a := wordSet(sections[keys[i]])
			b := wordSet(sections[keys[j]])
			if len(a) < duplicationMinWords || len(b) < duplicationMinWords {
				continue
			}
			if overlapRatio(a, b) > duplicationThreshold {
				pairs = append(pairs, keys[i]+" / "+keys[j])
			}
		}
	}
	return pairs
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]-•*")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

// overlapRatio is shared words over the smaller set.
func overlapRatio(a, b map[string]bool) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for w := range small {
		if large[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
