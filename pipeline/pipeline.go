package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-wines/config"
	"github.com/aluiziolira/go-scrape-wines/models"
	"github.com/aluiziolira/go-scrape-wines/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.WineRecord) error
	Close() error
	Validate() error
}

// Pipeline turns raw items into wine records, skipping items that cannot
// be formatted, are not useful, or repeat a product already emitted.
type Pipeline struct {
	seen    *lru.Cache[string, struct{}]
	metrics metrics
}

// NewPipeline builds a pipeline. A DedupeMaxSize of zero disables dedupe.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{metrics: newMetrics()}
	if cfg.DedupeMaxSize > 0 {
		seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
		if err != nil {
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
		p.seen = seen
	}
	return p, nil
}

// Format maps items to records in order.
func (p *Pipeline) Format(items []models.RawItem) []*models.WineRecord {
	records := make([]*models.WineRecord, 0, len(items))
	for _, item := range items {
		record := p.prepare(item)
		if record == nil {
			continue
		}
		records = append(records, record)
	}
	slog.Info("formatted records",
		slog.Int("items", len(items)),
		slog.Int("records", len(records)),
	)
	return records
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) prepare(item models.RawItem) *models.WineRecord {
	record, err := parser.FormatItem(item)
	switch {
	case errors.Is(err, parser.ErrNoProduct):
		p.metrics.addValidation("no_product")
		return nil
	case errors.Is(err, parser.ErrNotUseful):
		p.metrics.addValidation("not_useful")
		return nil
	case err != nil:
		p.metrics.addValidation("invalid_record")
		slog.Error("error formatting item",
			slog.Any("error", err),
			slog.String("item", string(item)),
		)
		return nil
	}

	if p.seen != nil && record.TescoID != nil && *record.TescoID != "" {
		if _, dup := p.seen.Get(*record.TescoID); dup {
			p.metrics.addValidation("duplicate_id")
			return nil
		}
		p.seen.Add(*record.TescoID, struct{}{})
	}

	p.metrics.incrementProcessed()
	return record
}

// Save writes records through w, closes it and checks the result.
func Save(w OutputWriter, records []*models.WineRecord) error {
	if err := w.Write(records); err != nil {
		w.Close()
		return fmt.Errorf("write records: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validate output: %w", err)
	}
	return nil
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
