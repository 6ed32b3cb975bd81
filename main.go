package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

func main() {
	transcriptPath := flag.String("transcript", "", "path to transcript text file ('-' for stdin)")
	templateID := flag.String("template", "", "note template id from the store (empty for SOAP)")
	importPath := flag.String("import-template", "", "import a YAML template definition and exit")
	listTemplates := flag.Bool("list-templates", false, "list stored templates and exit")
	patientName := flag.String("patient-name", "", "patient name for prompt framing")
	patientMRN := flag.String("patient-mrn", "", "patient medical record number")
	patientDOB := flag.String("patient-dob", "", "patient date of birth")
	writeFile := flag.Bool("write", false, "write the note to the configured output dir instead of stdout")
	flag.Parse()

	cfg := LoadConfig()
	logger := newLogger(cfg.LogLevel)

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init template store: %v", err)
	}
	defer db.Close()

	if *importPath != "" {
		tpl, err := ImportTemplateFile(db, *importPath)
		if err != nil {
			log.Fatalf("Failed to import template: %v", err)
		}
		fmt.Printf("Imported template %s (%s), %d sections\n", tpl.ID, tpl.Name, len(tpl.Sections))
		return
	}

	if *listTemplates {
		templates, err := ListTemplates(db)
		if err != nil {
			log.Fatalf("Failed to list templates: %v", err)
		}
		for _, tpl := range templates {
			fmt.Printf("%s\t%s\t%s\n", tpl.ID, tpl.Name, tpl.Specialty)
		}
		return
	}

	if *transcriptPath == "" {
		log.Fatalf("-transcript is required (or use -import-template / -list-templates)")
	}
	transcript, err := readTranscript(*transcriptPath)
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}

	var template *NoteTemplate
	if *templateID != "" {
		template, err = GetTemplate(db, *templateID)
		if err != nil {
			log.Fatalf("Failed to load template '%s': %v", *templateID, err)
		}
	}

	chain := NewProviderChain(cfg, BuildProviders(cfg), NewModelAffinity(), logger)
	pipeline := NewPipeline(cfg, chain, NoopBillingAnalyzer{}, logger)

	note, err := pipeline.GenerateNote(context.Background(), NoteRequest{
		Transcript: transcript,
		Patient: PatientContext{
			Name: *patientName,
			MRN:  *patientMRN,
			DOB:  *patientDOB,
		},
		Template: template,
	})
	if err != nil {
		log.Fatalf("Note generation failed: %v", err)
	}

	if *writeFile {
		path, err := WriteNoteFile(note, cfg.NoteOutputDir)
		if err != nil {
			log.Fatalf("Failed to write note: %v", err)
		}
		fmt.Println(path)
		return
	}
	fmt.Print(note.Formatted)
}

func readTranscript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// WriteNoteFile writes the formatted note under outputDir, named by date
// and note id.
func WriteNoteFile(note *ProcessedNote, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("note_%s_%s.txt", note.Metadata.ProcessedAt.Format("20060102"), note.Metadata.NoteID)
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(note.Formatted), 0644)
}
