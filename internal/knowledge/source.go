package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedDocument = errors.New("unsupported document type")

type DocumentKind string

const (
	KindPDF         DocumentKind = "pdf"
	KindScenarios   DocumentKind = "json"
	KindUnsupported DocumentKind = ""
)

// Source is a document submitted for indexing. Path names the document and
// forms the prefix of every chunk's source_id. When Data is nil the file at
// Path is read.
type Source struct {
	Path string
	Data []byte
}

func (s Source) Kind() DocumentKind {
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".pdf":
		return KindPDF
	case ".json":
		return KindScenarios
	default:
		return KindUnsupported
	}
}

func (s Source) bytes() ([]byte, error) {
	if s.Data != nil {
		return s.Data, nil
	}
	return os.ReadFile(s.Path)
}

// ScenarioRecord is one entry of a scenarios JSON document.
type ScenarioRecord struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Tasks              []string `json:"tasks"`
	Solution           string   `json:"solution"`
	LearningObjectives []string `json:"learning_objectives"`
}

type scenarioFile struct {
	Scenarios []ScenarioRecord `json:"scenarios"`
}

func (r ScenarioRecord) Text() string {
	return fmt.Sprintf("Scenario: %s\n\nDescription: %s\n\nTasks: %s\n\nSolution: %s\n\nLearning Objectives: %s",
		r.Title,
		r.Description,
		strings.Join(r.Tasks, " "),
		r.Solution,
		strings.Join(r.LearningObjectives, " "),
	)
}

// extractBlocks returns the plain-text blocks of a document: one block for a
// PDF (all pages concatenated), one block per scenario record for JSON.
func extractBlocks(src Source) ([]string, error) {
	kind := src.Kind()
	if kind == KindUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filepath.Ext(src.Path))
	}

	data, err := src.bytes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Path, err)
	}

	switch kind {
	case KindPDF:
		text, err := pdfText(data)
		if err != nil {
			return nil, fmt.Errorf("pdf %s: %w", src.Path, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []string{text}, nil
	default:
		var f scenarioFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("scenarios json %s: %w", src.Path, err)
		}
		blocks := make([]string, 0, len(f.Scenarios))
		for _, rec := range f.Scenarios {
			blocks = append(blocks, rec.Text())
		}
		return blocks, nil
	}
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// keep going; one unreadable page should not drop the document
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// ExtractText returns the plain text of a PDF or scenarios document.
func ExtractText(src Source) (string, error) {
	blocks, err := extractBlocks(src)
	if err != nil {
		return "", err
	}
	return strings.Join(blocks, "\n\n"), nil
}
