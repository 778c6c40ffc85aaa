// Package docs imports coaching reference documents (meal plans,
// protocol write-ups) into storage so they can be listed and searched
// alongside conversation memory.
package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/helioform/coachd/internal/storage"
)

// DocStore is the slice of storage.Store this package needs.
type DocStore interface {
	SaveDoc(storage.Doc) error
	GetDoc(id string) (storage.Doc, error)
	ListDocs(limit int) ([]storage.Doc, error)
}

// Importer stores reference documents.
type Importer struct {
	store  DocStore
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(store DocStore) *Importer {
	return &Importer{store: store, logger: slog.Default()}
}

// ImportText stores raw text as a reference document.
func (i *Importer) ImportText(title, content, source string, tags []string) (storage.Doc, error) {
	if strings.TrimSpace(content) == "" {
		return storage.Doc{}, fmt.Errorf("document content is empty")
	}
	if title == "" {
		title = firstLine(content)
	}

	tagsJSON := "[]"
	if len(tags) > 0 {
		b, err := json.Marshal(tags)
		if err != nil {
			return storage.Doc{}, fmt.Errorf("marshalling tags: %w", err)
		}
		tagsJSON = string(b)
	}

	doc := storage.Doc{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Source:    source,
		Tags:      tagsJSON,
		CreatedAt: time.Now(),
	}
	if err := i.store.SaveDoc(doc); err != nil {
		return storage.Doc{}, fmt.Errorf("saving document: %w", err)
	}
	i.logger.Info("document imported", "id", doc.ID, "title", doc.Title, "bytes", len(content))
	return doc, nil
}

// ImportFile stores a file as a reference document. PDF files are
// converted to plain text first; everything else is read verbatim.
func (i *Importer) ImportFile(path, title string, tags []string) (storage.Doc, error) {
	var content string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := ExtractPDFText(path)
		if err != nil {
			return storage.Doc{}, fmt.Errorf("extracting PDF text from %s: %w", path, err)
		}
		content = text
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return storage.Doc{}, fmt.Errorf("reading %s: %w", path, err)
		}
		content = string(data)
	}

	if title == "" {
		title = filepath.Base(path)
	}
	return i.ImportText(title, content, "file:"+path, tags)
}

// List returns the most recent documents.
func (i *Importer) List(limit int) ([]storage.Doc, error) {
	if limit <= 0 {
		limit = 50
	}
	return i.store.ListDocs(limit)
}

// Get returns one document by id.
func (i *Importer) Get(id string) (storage.Doc, error) {
	return i.store.GetDoc(id)
}

func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func firstLine(s string) string {
	line := s
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		line = s[:idx]
	}
	line = strings.TrimSpace(line)
	const maxTitle = 80
	if len(line) > maxTitle {
		line = line[:maxTitle]
	}
	if line == "" {
		line = "Untitled document"
	}
	return line
}
