package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"storefront/internal/catalog"
)

// StorageKey is the well-known key the cart snapshot is stored under.
const StorageKey = "cart"

var ErrEmptyProductID = errors.New("product id required")

// Line is one aggregated product entry. Snapshot is the product as it was
// when first added; later adds never refresh it.
type Line struct {
	ProductID string          `json:"product_id"`
	Snapshot  catalog.Product `json:"snapshot"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type snapshot struct {
	Version int    `json:"v"`
	Lines   []Line `json:"lines"`
}

const snapshotVersion = 1

// validLines reports whether ls could have been produced by the store.
func validLines(ls []Line) bool {
	seen := make(map[string]struct{}, len(ls))
	for _, l := range ls {
		if l.ProductID == "" || l.Quantity < 1 || l.Snapshot.ID != l.ProductID {
			return false
		}
		if l.Snapshot.Price.IsNegative() {
			return false
		}
		if _, dup := seen[l.ProductID]; dup {
			return false
		}
		seen[l.ProductID] = struct{}{}
	}
	return true
}
