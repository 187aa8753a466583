// Package pipeline formats scraped items into wine records and writes them
// out as JSON, CSV, or both.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-wines/models"
)

type namedWriter struct {
	format string
	w      OutputWriter
}

// DualWriter fans records out to a CSV and a JSON file.
type DualWriter struct {
	targets []namedWriter
	mu      sync.Mutex
}

// NewDualWriter opens both files. If the JSON file cannot be created the CSV
// handle is closed again.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("csv writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("json writer: %w", err)
	}

	return &DualWriter{
		targets: []namedWriter{
			{format: "csv", w: csvWriter},
			{format: "json", w: jsonWriter},
		},
	}, nil
}

// Write stops at the first failing target.
func (dw *DualWriter) Write(records []*models.WineRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, t := range dw.targets {
		if err := t.w.Write(records); err != nil {
			return fmt.Errorf("%s write: %w", t.format, err)
		}
	}
	return nil
}

// Close closes every target and joins their errors.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	return dw.each("close", OutputWriter.Close)
}

// Validate checks every output file and joins their errors.
func (dw *DualWriter) Validate() error {
	return dw.each("validate", OutputWriter.Validate)
}

func (dw *DualWriter) each(op string, fn func(OutputWriter) error) error {
	var errs []error
	for _, t := range dw.targets {
		if err := fn(t.w); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", t.format, op, err))
		}
	}
	return errors.Join(errs...)
}
