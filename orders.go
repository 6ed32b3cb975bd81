package main

import (
	"regexp"
	"strings"
)

// actionKeywords maps each verb family to the spellings that select it.
// First match wins within a family; families are checked in table order.
var actionKeywords = []struct {
	action   OrderAction
	keywords []string
}{
	{ActionIncrease, []string{"increase", "up-titrate", "uptitrate", "titrate up", "raise the dose", "bump up"}},
	{ActionDecrease, []string{"decrease", "reduce", "lower the dose", "taper", "down-titrate", "titrate down"}},
	{ActionStop, []string{"stop", "discontinue", "hold", "cease", "no longer take"}},
	{ActionContinue, []string{"continue", "resume", "keep taking", "maintain", "stay on", "refill"}},
	{ActionStart, []string{"start", "begin", "initiate", "prescribe", "put on", "add"}},
	{ActionOrder, []string{"order", "obtain"}},
	{ActionCheck, []string{"check", "recheck", "repeat", "draw", "get a"}},
}

// Common drug names recognized without a dosage pattern. Lower case.
var knownDrugNames = []string{
	"metformin", "insulin", "lantus", "humalog", "novolog", "tresiba", "levemir",
	"ozempic", "trulicity", "victoza", "mounjaro", "jardiance", "farxiga", "invokana",
	"lisinopril", "losartan", "amlodipine", "metoprolol", "carvedilol", "atenolol",
	"hydrochlorothiazide", "furosemide", "spironolactone",
	"atorvastatin", "rosuvastatin", "simvastatin", "pravastatin", "ezetimibe",
	"levothyroxine", "synthroid", "methimazole",
	"omeprazole", "pantoprazole", "famotidine",
	"gabapentin", "pregabalin", "duloxetine", "sertraline", "escitalopram", "fluoxetine",
	"aspirin", "clopidogrel", "warfarin", "eliquis", "xarelto",
	"prednisone", "albuterol", "montelukast",
	"amoxicillin", "azithromycin", "ciprofloxacin", "doxycycline",
	"ibuprofen", "naproxen", "acetaminophen", "tramadol",
	"glipizide", "glimepiride", "pioglitazone", "sitagliptin", "januvia",
}

var dosagePattern = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(mg|mcg|milligrams?|micrograms?|units?|ml|grams?|g)\b`)

var labKeywords = []string{
	"a1c", "hemoglobin a1c", "hba1c", "cbc", "complete blood count",
	"cmp", "bmp", "comprehensive metabolic", "basic metabolic", "metabolic panel",
	"lipid panel", "lipids", "cholesterol panel", "tsh", "thyroid panel",
	"urinalysis", "urine culture", "microalbumin", "creatinine", "egfr",
	"vitamin d level", "b12 level", "iron studies", "ferritin",
	"psa", "liver function", "lfts", "blood work", "lab work", "labs",
	"blood test", "cultures", "inr", "pt/inr",
}

var labOrderVerbs = []string{
	"order", "check", "draw", "obtain", "get", "repeat", "recheck", "run", "send",
}

// Phrases that state a lab value rather than order a test.
var labValuePattern = regexp.MustCompile(`(?i)\b(a1c|hba1c|blood sugar|glucose|creatinine|cholesterol|tsh|potassium|sodium|inr)\s+(of|is|was|at)\s+\d`)

// Demographic narrative, not an order.
var demographicPattern = regexp.MustCompile(`(?i)\b\d+[\s-]*(year|yr)s?[\s-]*old\b`)

var imagingKeywords = []string{
	"x-ray", "xray", "ct scan", "cat scan", "ct of", "mri", "ultrasound",
	"sonogram", "echocardiogram", "echo", "ekg", "ecg", "stress test",
	"mammogram", "dexa", "bone density", "doppler", "angiogram", "pet scan",
	"nuclear scan", "fluoroscopy",
}

var priorAuthKeywords = []string{
	"prior auth", "prior authorization", "pre-auth", "preauth",
	"pre-authorization", "preauthorization", "insurance approval",
	"insurance authorization",
}

var referralKeywords = []string{
	"refer", "referral", "consult", "consultation", "see a specialist",
	"send to", "follow up with cardiology", "follow up with endocrinology",
	"see cardiology", "see endocrinology", "see nephrology", "see neurology",
	"see orthopedics", "see gastroenterology", "see podiatry", "see ophthalmology",
}

// Minimum distance between fallback split points, so keyword splitting of
// an unpunctuated block cannot produce degenerate micro-sentences.
const minSplitStride = 40

// splitKeywords are the boundaries used for the fallback split.
var splitKeywords = []string{"continue", "start", "stop", "order", "refer", "check", "increase", "decrease"}

// ExtractOrders scans an already-formatted note for actionable clinical
// orders. It never sees the raw transcript; formatting has already removed
// filler and dialogue noise.
func ExtractOrders(noteText string) OrderExtractionResult {
	var result OrderExtractionResult
	for _, sentence := range splitSentences(noteText) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if order, ok := classifyMedication(sentence); ok {
			result.Medications = append(result.Medications, order)
		}
		if order, ok := classifyLab(sentence); ok {
			result.Labs = append(result.Labs, order)
		}
		if order, ok := classifyImaging(sentence); ok {
			result.Imaging = append(result.Imaging, order)
		}
		if order, ok := classifyPriorAuth(sentence); ok {
			result.PriorAuth = append(result.PriorAuth, order)
		}
		if order, ok := classifyReferral(sentence); ok {
			result.Referrals = append(result.Referrals, order)
		}
	}
	return result
}

var sentenceSplitPattern = regexp.MustCompile(`[.!?;\n]+`)

// splitSentences splits on terminal punctuation, falling back to action
// keyword boundaries for long unpunctuated blocks.
func splitSentences(text string) []string {
	parts := sentenceSplitPattern.Split(text, -1)
	var sentences []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, p)
		}
	}
	if len(sentences) > 1 || len(text) < 200 {
		return sentences
	}

	// One long run-on block: split where an action keyword starts a new
	// clause, at least minSplitStride apart.
	lower := strings.ToLower(text)
	splitPoints := []int{0}
	last := 0
	for pos := minSplitStride; pos < len(lower); pos++ {
		for _, kw := range splitKeywords {
			if strings.HasPrefix(lower[pos:], kw+" ") && pos-last >= minSplitStride {
				splitPoints = append(splitPoints, pos)
				last = pos
				break
			}
		}
	}
	if len(splitPoints) == 1 {
		return sentences
	}
	splitPoints = append(splitPoints, len(text))
	var out []string
	for i := 0; i+1 < len(splitPoints); i++ {
		segment := strings.TrimSpace(text[splitPoints[i]:splitPoints[i+1]])
		if segment != "" {
			out = append(out, segment)
		}
	}
	return out
}

// classifyMedication requires an action verb co-occurring with a known drug
// name or a dosage pattern.
func classifyMedication(sentence string) (ExtractedOrder, bool) {
	lower := strings.ToLower(sentence)
	action, ok := matchAction(lower)
	if !ok || action == ActionOrder || action == ActionCheck {
		return ExtractedOrder{}, false
	}
	if !mentionsDrug(lower) && !dosagePattern.MatchString(sentence) {
		return ExtractedOrder{}, false
	}
	return ExtractedOrder{
		Type:       OrderMedication,
		Text:       strings.TrimSpace(sentence),
		Action:     action,
		Urgency:    detectUrgency(lower),
		Confidence: 0.85,
	}, true
}

// classifyLab needs a lab keyword plus an order verb, and excludes
// value-only statements and demographic narrative.
func classifyLab(sentence string) (ExtractedOrder, bool) {
	lower := strings.ToLower(sentence)
	if !containsAny(lower, labKeywords) {
		return ExtractedOrder{}, false
	}
	if !containsAnyWord(lower, labOrderVerbs) {
		return ExtractedOrder{}, false
	}
	if labValuePattern.MatchString(sentence) && !hasExplicitLabVerb(lower) {
		return ExtractedOrder{}, false
	}
	if demographicPattern.MatchString(sentence) || strings.Contains(lower, "history of") {
		return ExtractedOrder{}, false
	}
	action := ActionOrder
	if containsAnyWord(lower, []string{"check", "recheck", "repeat", "draw"}) {
		action = ActionCheck
	}
	return ExtractedOrder{
		Type:       OrderLab,
		Text:       strings.TrimSpace(sentence),
		Action:     action,
		Urgency:    detectUrgency(lower),
		Confidence: 0.8,
	}, true
}

// hasExplicitLabVerb distinguishes "order hemoglobin a1c, glucose was 250"
// from a pure value statement.
func hasExplicitLabVerb(lower string) bool {
	return containsAnyWord(lower, []string{"order", "obtain", "draw", "send", "recheck", "repeat"})
}

func classifyImaging(sentence string) (ExtractedOrder, bool) {
	lower := strings.ToLower(sentence)
	if !containsAny(lower, imagingKeywords) {
		return ExtractedOrder{}, false
	}
	return ExtractedOrder{
		Type:       OrderImaging,
		Text:       strings.TrimSpace(sentence),
		Action:     ActionOrder,
		Urgency:    detectUrgency(lower),
		Confidence: 0.8,
	}, true
}

func classifyPriorAuth(sentence string) (ExtractedOrder, bool) {
	lower := strings.ToLower(sentence)
	if !containsAny(lower, priorAuthKeywords) {
		return ExtractedOrder{}, false
	}
	return ExtractedOrder{
		Type:       OrderPriorAuth,
		Text:       strings.TrimSpace(sentence),
		Urgency:    detectUrgency(lower),
		Confidence: 0.9,
	}, true
}

func classifyReferral(sentence string) (ExtractedOrder, bool) {
	lower := strings.ToLower(sentence)
	if !containsAny(lower, referralKeywords) {
		return ExtractedOrder{}, false
	}
	return ExtractedOrder{
		Type:       OrderReferral,
		Text:       strings.TrimSpace(sentence),
		Urgency:    detectUrgency(lower),
		Confidence: 0.7,
	}, true
}

// detectUrgency needs word-boundary matching for "stat": plain substring
// search fires inside "atorvastatin" and "status".
func detectUrgency(lower string) OrderUrgency {
	if containsWord(lower, "stat") {
		return UrgencyStat
	}
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") ||
		strings.Contains(lower, "immediately") || strings.Contains(lower, "right away") {
		return UrgencyUrgent
	}
	return UrgencyRoutine
}

func matchAction(lower string) (OrderAction, bool) {
	for _, family := range actionKeywords {
		for _, kw := range family.keywords {
			if containsWord(lower, kw) {
				return family.action, true
			}
		}
	}
	return "", false
}

func mentionsDrug(lower string) bool {
	for _, drug := range knownDrugNames {
		if containsWord(lower, drug) {
			return true
		}
	}
	return false
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAnyWord(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// containsWord matches kw on word boundaries so "start" does not fire on
// "startle" or "restart".
func containsWord(lower, kw string) bool {
	idx := 0
	for {
		pos := strings.Index(lower[idx:], kw)
		if pos < 0 {
			return false
		}
		pos += idx
		end := pos + len(kw)
		beforeOK := pos == 0 || !isWordChar(lower[pos-1])
		afterOK := end >= len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = pos + 1
		if idx >= len(lower) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
