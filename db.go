package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the template store and creates its schema. Templates are the
// only persisted artifact; generated notes are never written here.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS note_templates (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		specialty  TEXT DEFAULT '',
		sections   TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_note_templates_specialty ON note_templates(specialty);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// SaveTemplate inserts or replaces a template definition.
func SaveTemplate(db *sql.DB, tpl *NoteTemplate) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	sections, err := json.Marshal(tpl.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO note_templates (id, name, specialty, sections, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			sections = excluded.sections,
			updated_at = CURRENT_TIMESTAMP`,
		tpl.ID, tpl.Name, tpl.Specialty, string(sections))
	if err != nil {
		return fmt.Errorf("save template %s: %w", tpl.ID, err)
	}
	return nil
}

// GetTemplate loads a template by id. Returns sql.ErrNoRows when absent.
func GetTemplate(db *sql.DB, id string) (*NoteTemplate, error) {
	var tpl NoteTemplate
	var sections string
	var createdAt, updatedAt time.Time
	err := db.QueryRow(`
		SELECT id, name, specialty, sections, created_at, updated_at
		FROM note_templates WHERE id = ?`, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.Specialty, &sections, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sections), &tpl.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections for template %s: %w", id, err)
	}
	tpl.CreatedAt = createdAt
	tpl.UpdatedAt = updatedAt
	return &tpl, nil
}

// ListTemplates returns id, name and specialty for every stored template.
func ListTemplates(db *sql.DB) ([]NoteTemplate, error) {
	rows, err := db.Query(`SELECT id, name, specialty FROM note_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NoteTemplate
	for rows.Next() {
		var tpl NoteTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Specialty); err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// ImportTemplateFile loads a YAML template definition and stores it.
func ImportTemplateFile(db *sql.DB, path string) (*NoteTemplate, error) {
	tpl, err := LoadNoteTemplate(path)
	if err != nil {
		return nil, err
	}
	if err := SaveTemplate(db, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}
