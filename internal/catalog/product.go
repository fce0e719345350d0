package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    *string         `json:"category,omitempty"`
	Brand       *string         `json:"brand,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Label returns a pointer to s, or nil when s is blank.
func Label(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func labelValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
