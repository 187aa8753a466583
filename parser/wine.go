package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-wines/models"
)

var (
	// ErrNoProduct marks items without a product object.
	ErrNoProduct = errors.New("item has no product")
	// ErrNotUseful marks records with neither a brand nor a name.
	ErrNotUseful = errors.New("record has no brand or name")
)

// WineName strips a trailing unit of measure ("75cl") from title. The suffix
// is removed until the title no longer ends with it, so the result is stable
// under repeated application. If nothing is left the title is returned as is.
func WineName(title, unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return title
	}
	name := title
	for strings.HasSuffix(name, unit) {
		name = strings.TrimSpace(name[:len(name)-len(unit)])
	}
	if name == "" {
		return title
	}
	return name
}

// FormatItem maps one raw item to a WineRecord.
func FormatItem(raw models.RawItem) (*models.WineRecord, error) {
	var item models.ItemSchema
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if item.Product == nil {
		return nil, ErrNoProduct
	}
	product := item.Product

	record := &models.WineRecord{
		ProducerBrand: product.BrandName,
		Region:        product.ShelfName,
		PriceEUR:      product.Price,
		TescoID:       product.ID,
		ImageURL:      product.DefaultImageURL,
		Size:          product.UnitOfMeasure,
	}
	if product.Title != nil {
		unit := ""
		if product.UnitOfMeasure != nil {
			unit = *product.UnitOfMeasure
		}
		name := WineName(*product.Title, unit)
		record.WineName = &name
	}
	promotions, err := decodePromotions(item.Promotions)
	if err != nil {
		return nil, err
	}
	record.Promotions = promotions

	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// decodePromotions returns an empty list when the key is absent and nil for
// an explicit null, which is written back out as null.
func decodePromotions(raw json.RawMessage) ([]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []any{}, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var promotions []any
	if err := json.Unmarshal(raw, &promotions); err != nil {
		return nil, fmt.Errorf("decode promotions: %w", err)
	}
	return promotions, nil
}

// ValidateRecord rejects records that carry neither a brand nor a name.
func ValidateRecord(r *models.WineRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if isBlank(r.ProducerBrand) && isBlank(r.WineName) {
		return ErrNotUseful
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
