package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
)

func TestGenerateNoteEndToEnd(t *testing.T) {
	response := `{"sections": {
		"chiefComplaint": "Diabetes management",
		"historyOfPresentIllness": "Blood sugar running 250 at home.",
		"plan": "Start Metformin 500mg twice daily. Recheck blood sugar log next visit."
	}}`
	provider := &fakeProvider{
		name:   "anthropic",
		models: []string{"model-a"},
		script: []fakeCall{{content: response}},
	}
	pipeline, _ := testPipeline(t, provider)

	note, err := pipeline.GenerateNote(context.Background(), NoteRequest{
		Transcript: "Start Metformin 500mg twice daily, blood sugar is 250.",
	})
	if err != nil {
		t.Fatalf("GenerateNote failed: %v", err)
	}

	if len(note.ExtractedOrders.Medications) != 1 {
		t.Fatalf("expected one medication order, got %+v", note.ExtractedOrders)
	}
	med := note.ExtractedOrders.Medications[0]
	if med.Action != ActionStart || med.Confidence != 0.85 {
		t.Fatalf("unexpected medication order: %+v", med)
	}
	if !strings.Contains(note.Formatted, "250") || !strings.Contains(note.Formatted, "500") {
		t.Fatalf("numeric values lost in final note:\n%s", note.Formatted)
	}
	if note.Metadata.NoteID == "" || note.Metadata.ModelUsed != "model-a" || note.Metadata.Provider != "anthropic" {
		t.Fatalf("metadata incomplete: %+v", note.Metadata)
	}
	if note.Metadata.Confidence <= 0 {
		t.Fatalf("quality confidence not recorded: %+v", note.Metadata)
	}
}

func TestGenerateNoteRetryCountAfterRateLimits(t *testing.T) {
	rateLimited := &RateLimitError{Provider: "anthropic", Err: errors.New("429")}
	provider := &fakeProvider{
		name:   "anthropic",
		models: []string{"model-a"},
		script: []fakeCall{
			{err: rateLimited},
			{err: rateLimited},
			{err: rateLimited},
			{content: `{"sections": {"plan": "Follow up in three months."}}`},
		},
	}
	pipeline, _ := testPipeline(t, provider)

	note, err := pipeline.GenerateNote(context.Background(), NoteRequest{
		Transcript: "Routine follow up, plan three months.",
	})
	if err != nil {
		t.Fatalf("rate limits within budget must not surface: %v", err)
	}
	if note.Metadata.RetryCount != 3 {
		t.Fatalf("expected retryCount 3, got %d", note.Metadata.RetryCount)
	}
}

func TestGenerateNoteParseErrorPropagates(t *testing.T) {
	provider := &fakeProvider{
		name:   "anthropic",
		models: []string{"model-a"},
		script: []fakeCall{{content: "total gibberish with no sections"}},
	}
	pipeline, _ := testPipeline(t, provider)

	_, err := pipeline.GenerateNote(context.Background(), NoteRequest{Transcript: "anything"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestGenerateNoteEmptyTranscript(t *testing.T) {
	pipeline, _ := testPipeline(t, &fakeProvider{name: "anthropic", models: []string{"m"}, script: []fakeCall{{content: "{}"}}})
	if _, err := pipeline.GenerateNote(context.Background(), NoteRequest{}); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}

func TestGenerateNoteAppendsBillingBlock(t *testing.T) {
	provider := &fakeProvider{
		name:   "anthropic",
		models: []string{"model-a"},
		script: []fakeCall{{content: `{"sections": {"plan": "Continue current therapy."}}`}},
	}
	cfg := Config{
		BackoffBaseMs: 1, BackoffMaxMs: 4, MaxRetries: 3, NoteMaxRetries: 12,
		ComplianceRetries: 2, MinSectionChars: 10, Temperature: 0.3,
		MaxTokens: 4096, TopP: 1.0, SpecialtyRole: "an experienced physician",
	}
	billing := staticBilling{block: "BILLING:\nCPT 99213 - Established patient visit"}
	pipeline := NewPipeline(cfg, testChain(t, provider), billing, slog.Default())

	note, err := pipeline.GenerateNote(context.Background(), NoteRequest{Transcript: "Continue current therapy."})
	if err != nil {
		t.Fatalf("GenerateNote failed: %v", err)
	}
	if !strings.Contains(note.Formatted, "CPT 99213") {
		t.Fatalf("billing block not appended:\n%s", note.Formatted)
	}
}

func TestGenerateNoteToleratesBillingFailure(t *testing.T) {
	provider := &fakeProvider{
		name:   "anthropic",
		models: []string{"model-a"},
		script: []fakeCall{{content: `{"sections": {"plan": "Continue current therapy."}}`}},
	}
	cfg := Config{
		BackoffBaseMs: 1, BackoffMaxMs: 4, MaxRetries: 3, NoteMaxRetries: 12,
		ComplianceRetries: 2, MinSectionChars: 10, Temperature: 0.3,
		MaxTokens: 4096, TopP: 1.0, SpecialtyRole: "an experienced physician",
	}
	pipeline := NewPipeline(cfg, testChain(t, provider), failingBilling{}, slog.Default())

	note, err := pipeline.GenerateNote(context.Background(), NoteRequest{Transcript: "Continue current therapy."})
	if err != nil {
		t.Fatalf("billing failure must not fail the note: %v", err)
	}
	if !strings.Contains(note.Formatted, "PLAN:") {
		t.Fatalf("note content missing:\n%s", note.Formatted)
	}
}

func TestRetryTemperatureBump(t *testing.T) {
	cfg := Config{Temperature: 0.3, RetryTemperatureBump: 0.2, MaxTokens: 100, TopP: 1.0}
	pipeline := NewPipeline(cfg, nil, nil, slog.Default())

	if got := pipeline.modelRequest("s", "u", 0).Temperature; got != 0.3 {
		t.Fatalf("initial temperature wrong: %f", got)
	}
	if got := pipeline.modelRequest("s", "u", 2).Temperature; math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("bumped temperature wrong: %f", got)
	}
	if got := pipeline.modelRequest("s", "u", 10).Temperature; got != 1.0 {
		t.Fatalf("temperature must cap at 1.0, got %f", got)
	}
}
