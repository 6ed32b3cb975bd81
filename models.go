package main

import "time"

// SectionFormat controls how a template section is rendered and how the
// model is instructed to format its content.
type SectionFormat string

const (
	FormatParagraph SectionFormat = "paragraph"
	FormatBullets   SectionFormat = "bullets"
	FormatNumbered  SectionFormat = "numbered"
)

// TemplateSection is one named section of a note template.
type TemplateSection struct {
	Key            string        `yaml:"key"` // unique within a template
	Title          string        `yaml:"title"`
	Required       bool          `yaml:"required"`
	AIInstructions string        `yaml:"ai_instructions"` // free-text guidance for the model
	Keywords       []string      `yaml:"keywords"`        // hints for what belongs in this section
	ExampleText    string        `yaml:"example_text"`    // optional structural example
	Format         SectionFormat `yaml:"format"`
	Order          int           `yaml:"order"` // assembly sequence, ascending
}

// NoteTemplate is a doctor-defined ordered set of sections.
type NoteTemplate struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Specialty string            `yaml:"specialty"`
	Sections  []TemplateSection `yaml:"sections"`
	CreatedAt time.Time         `yaml:"-"`
	UpdatedAt time.Time         `yaml:"-"`
}

// PatientContext carries optional patient identifiers used only for prompt
// framing. Fields are never validated or persisted here.
type PatientContext struct {
	Name string
	MRN  string // medical record number
	DOB  string
}

// SectionMap maps a section key to its extracted text content. Keys are a
// subset of the template's section keys, or the SOAP vocabulary when no
// template is supplied.
type SectionMap map[string]string

// SOAP section keys used when no template is supplied.
var soapSectionKeys = []string{
	"chiefComplaint",
	"historyOfPresentIllness",
	"reviewOfSystems",
	"pastMedicalHistory",
	"medications",
	"allergies",
	"socialHistory",
	"familyHistory",
	"physicalExam",
	"assessment",
	"plan",
}

var soapSectionTitles = map[string]string{
	"chiefComplaint":          "Chief Complaint",
	"historyOfPresentIllness": "History of Present Illness",
	"reviewOfSystems":         "Review of Systems",
	"pastMedicalHistory":      "Past Medical History",
	"medications":             "Medications",
	"allergies":               "Allergies",
	"socialHistory":           "Social History",
	"familyHistory":           "Family History",
	"physicalExam":            "Physical Exam",
	"assessment":              "Assessment",
	"plan":                    "Plan",
}

// OrderType classifies an actionable clinical instruction.
type OrderType string

const (
	OrderMedication OrderType = "medication"
	OrderLab        OrderType = "lab"
	OrderImaging    OrderType = "imaging"
	OrderPriorAuth  OrderType = "prior_auth"
	OrderReferral   OrderType = "referral"
	OrderOther      OrderType = "other"
)

// OrderAction is the verb family attached to a medication or lab order.
type OrderAction string

const (
	ActionStart    OrderAction = "start"
	ActionStop     OrderAction = "stop"
	ActionContinue OrderAction = "continue"
	ActionIncrease OrderAction = "increase"
	ActionDecrease OrderAction = "decrease"
	ActionOrder    OrderAction = "order"
	ActionCheck    OrderAction = "check"
)

// OrderUrgency is derived from stat/urgent keywords, default routine.
type OrderUrgency string

const (
	UrgencyRoutine OrderUrgency = "routine"
	UrgencyUrgent  OrderUrgency = "urgent"
	UrgencyStat    OrderUrgency = "stat"
)

// ExtractedOrder is a single order detected in the formatted note. Orders
// are derived, read-only artifacts of one note and are never persisted.
type ExtractedOrder struct {
	Type       OrderType
	Text       string
	Action     OrderAction // empty when no verb family applies
	Urgency    OrderUrgency
	Confidence float64 // fixed per classifier, in [0,1]
}

// OrderExtractionResult groups extracted orders by category.
type OrderExtractionResult struct {
	Medications []ExtractedOrder
	Labs        []ExtractedOrder
	Imaging     []ExtractedOrder
	PriorAuth   []ExtractedOrder
	Referrals   []ExtractedOrder
	Other       []ExtractedOrder
}

// Total returns the number of orders across all categories.
func (r OrderExtractionResult) Total() int {
	return len(r.Medications) + len(r.Labs) + len(r.Imaging) +
		len(r.PriorAuth) + len(r.Referrals) + len(r.Other)
}

// ComplianceResult reports required-section coverage for one validation
// pass. Transient, recomputed per pass.
type ComplianceResult struct {
	Compliant       bool
	MissingSections []string // section titles, template order
	PartialSections []string // present but placeholder/too thin
}

// QualityBucket is the advisory quality grade of a finished note.
type QualityBucket string

const (
	QualityExcellent QualityBucket = "excellent"
	QualityGood      QualityBucket = "good"
	QualityPoor      QualityBucket = "poor"
)

// QualityResult is advisory only: logged, never blocking.
type QualityResult struct {
	Quality    QualityBucket
	Issues     []string
	Confidence float64
}

// NoteMetadata records how a note was produced.
type NoteMetadata struct {
	NoteID      string
	ProcessedAt time.Time
	Provider    string // provider that ultimately served the request
	ModelUsed   string
	Confidence  float64 // advisory quality confidence
	RetryCount  int     // provider retries + compliance regenerations
}

// ProcessedNote is the pipeline's output: rebuilt in place while validation
// passes run, immutable once returned to the caller.
type ProcessedNote struct {
	Formatted       string
	Sections        SectionMap
	ExtractedOrders *OrderExtractionResult
	Metadata        NoteMetadata
}
