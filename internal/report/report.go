// Package report writes the results report of replayed queries and
// evaluates it against the expected solutions.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/llm-d/llm-d-edge-placement/internal/dataset"
)

// Entry is the recorded outcome of one query.
type Entry struct {
	Query           string                  `json:"query"`
	ExecutionResult dataset.ExecutionResult `json:"execution_result"`
	ChosenNode      []string                `json:"chosen_node"`
	State           []string                `json:"state"`
}

// Report maps a test identifier to its entries in query order.
type Report map[string][]Entry

// Writer appends entries to a report file. A Writer is safe for concurrent use
// within one process.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates a writer for the report at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the report location.
func (w *Writer) Path() string {
	return w.path
}

// Reset removes the report file if it exists.
func (w *Writer) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove report %s: %w", w.path, err)
	}
	return nil
}

// Append adds entry under testID. A missing or empty file starts a new report.
func (w *Writer) Append(testID string, entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, err := Load(w.path)
	if err != nil {
		return err
	}
	r[testID] = append(r[testID], entry)
	return write(w.path, r)
}

// Load reads a report. A missing or empty file yields an empty report.
func Load(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Report{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	r := Report{}
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return r, nil
}

func write(path string, r Report) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
