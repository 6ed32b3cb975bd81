package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoteRequest is one transcription to process. Transcript is read-only
// input; it is never mutated or persisted by the pipeline.
type NoteRequest struct {
	Transcript        string
	Patient           PatientContext
	Template          *NoteTemplate // nil produces a default SOAP note
	AdditionalContext string
}

// Pipeline turns a dictation transcript into a validated clinical note. It
// holds only immutable configuration and injected collaborators; every call
// to GenerateNote is an independent synchronous run, so one Pipeline is
// safe for concurrent use.
type Pipeline struct {
	cfg     Config
	chain   *ProviderChain
	billing BillingAnalyzer
	logger  *slog.Logger
}

func NewPipeline(cfg Config, chain *ProviderChain, billing BillingAnalyzer, logger *slog.Logger) *Pipeline {
	if billing == nil {
		billing = NoopBillingAnalyzer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, chain: chain, billing: billing, logger: logger}
}

// GenerateNote runs the full pipeline: prompt → provider chain → parse →
// order extraction → compliance loop → quality pass → assembly. Compliance
// and quality problems never fail the run; transport, auth and parse errors
// do.
func (p *Pipeline) GenerateNote(ctx context.Context, req NoteRequest) (*ProcessedNote, error) {
	if req.Transcript == "" {
		return nil, fmt.Errorf("transcript is empty")
	}

	systemPrompt, userPrompt := buildNotePrompts(PromptRequest{
		Transcript:        req.Transcript,
		Patient:           req.Patient,
		Template:          req.Template,
		AdditionalContext: req.AdditionalContext,
		SpecialtyRole:     p.cfg.SpecialtyRole,
	})

	// The primary generation call gets the long retry budget: for this call
	// latency is cheaper than failure.
	invoke, err := p.chain.Invoke(ctx, p.modelRequest(systemPrompt, userPrompt, 0), p.cfg.NoteMaxRetries)
	if err != nil {
		return nil, err
	}

	sections, err := ParseModelResponse(invoke.Content, req.Template)
	if err != nil {
		return nil, err
	}
	stripVerbatimCopies(sections, req.Transcript)

	note := &ProcessedNote{
		Sections: sections,
		Metadata: NoteMetadata{
			NoteID:      uuid.NewString(),
			ProcessedAt: time.Now(),
			Provider:    invoke.Provider,
			ModelUsed:   invoke.Model,
			RetryCount:  invoke.Retries,
		},
	}

	// Orders come from the formatted prose, never the raw transcript, and
	// the first successful extraction survives compliance regeneration.
	orders := ExtractOrders(AssembleNote(note.Sections, req.Template, nil))
	note.ExtractedOrders = &orders

	compliance := p.enforceCompliance(ctx, note, req)
	if !compliance.Compliant {
		p.logger.Warn("final note remains non-compliant",
			"component", "pipeline", "note_id", note.Metadata.NoteID,
			"missing", compliance.MissingSections, "partial", compliance.PartialSections)
	}

	note.Formatted = AssembleNote(note.Sections, req.Template, note.ExtractedOrders)

	quality := AssessQuality(note, req.Transcript)
	note.Metadata.Confidence = quality.Confidence
	p.logger.Info("note quality assessed",
		"component", "quality", "note_id", note.Metadata.NoteID,
		"quality", quality.Quality, "confidence", quality.Confidence, "issues", quality.Issues)

	if block, err := p.billing.AnalyzeBilling(ctx, req.Transcript, note.Sections); err != nil {
		// Billing must never fail the note.
		p.logger.Error("billing analyzer failed, note released without billing block",
			"component", "pipeline", "note_id", note.Metadata.NoteID, "error", err)
	} else if block != "" {
		note.Formatted += "\n" + strings.TrimSpace(block) + "\n"
	}

	p.logger.Info("note generated",
		"component", "pipeline", "note_id", note.Metadata.NoteID,
		"provider", note.Metadata.Provider, "model", note.Metadata.ModelUsed,
		"retries", note.Metadata.RetryCount, "orders", note.ExtractedOrders.Total(),
		"compliant", compliance.Compliant)
	return note, nil
}

// modelRequest builds the completion request for a generation attempt.
// attempt > 0 is a compliance retry; the optional temperature bump nudges
// regeneration away from repeating an identical incomplete note.
func (p *Pipeline) modelRequest(systemPrompt, userPrompt string, attempt int) ModelRequest {
	temperature := p.cfg.Temperature + float64(attempt)*p.cfg.RetryTemperatureBump
	if temperature > 1 {
		temperature = 1
	}
	return ModelRequest{
		SystemPrompt:     systemPrompt,
		UserPrompt:       userPrompt,
		Temperature:      temperature,
		MaxTokens:        p.cfg.MaxTokens,
		TopP:             p.cfg.TopP,
		FrequencyPenalty: p.cfg.FrequencyPenalty,
		PresencePenalty:  p.cfg.PresencePenalty,
	}
}
