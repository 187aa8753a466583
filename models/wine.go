package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are emitted as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ItemSchema is the part of a RawItem the formatter reads. Promotions stay
// raw so an absent list can be told apart from an explicit null.
type ItemSchema struct {
	Product    *ProductSchema  `json:"product"`
	Promotions json.RawMessage `json:"promotions"`
}

// ProductSchema lists the product fields used for a WineRecord. Every field
// is optional upstream.
type ProductSchema struct {
	ID              *string             `json:"id"`
	Title           *string             `json:"title"`
	BrandName       *string             `json:"brandName"`
	ShelfName       *string             `json:"shelfName"`
	Price           decimal.NullDecimal `json:"price"`
	DefaultImageURL *string             `json:"defaultImageUrl"`
	UnitOfMeasure   *string             `json:"unitOfMeasure"`
}

// WineRecord is the normalized output row for one product.
type WineRecord struct {
	ProducerBrand *string             `json:"producer_brand"`
	WineName      *string             `json:"wine_name"`
	Region        *string             `json:"region"`
	PriceEUR      decimal.NullDecimal `json:"price_eur"`
	TescoID       *string             `json:"tesco_id"`
	ImageURL      *string             `json:"image_url"`
	Size          *string             `json:"size"`
	Promotions    []any               `json:"promotions"`
}
