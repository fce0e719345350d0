package catalog

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
)

// DefaultPriceCeiling is the upper price bound applied when a filter leaves
// PriceMax unset.
var DefaultPriceCeiling = decimal.NewFromInt(10000)

// ParseSortKey accepts the canonical keys plus the older price_low/price_high
// spellings. Empty input means newest.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SortNewest):
		return SortNewest, nil
	case string(SortPriceAsc), "price_low":
		return SortPriceAsc, nil
	case string(SortPriceDesc), "price_high":
		return SortPriceDesc, nil
	default:
		return "", rejected("unknown sort key %q", s)
	}
}

type FilterSpec struct {
	SearchText string           `json:"search,omitempty"`
	Category   string           `json:"category,omitempty"`
	Brand      string           `json:"brand,omitempty"`
	PriceMin   *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax   *decimal.Decimal `json:"price_max,omitempty"`
	Sort       SortKey          `json:"sort,omitempty"`
}

// Normalize fills defaults and clamps the price range. Inverted bounds are
// swapped, a negative minimum becomes zero. The returned spec always has both
// price bounds set.
func (f FilterSpec) Normalize(ceiling decimal.Decimal) (FilterSpec, error) {
	out := FilterSpec{
		SearchText: strings.TrimSpace(f.SearchText),
		Category:   strings.TrimSpace(f.Category),
		Brand:      strings.TrimSpace(f.Brand),
	}

	sort, err := ParseSortKey(string(f.Sort))
	if err != nil {
		return FilterSpec{}, err
	}
	out.Sort = sort

	lo := decimal.Zero
	if f.PriceMin != nil {
		lo = *f.PriceMin
	}
	hi := ceiling
	if f.PriceMax != nil {
		hi = *f.PriceMax
	}
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	if lo.IsNegative() {
		lo = decimal.Zero
	}
	if hi.IsNegative() {
		hi = decimal.Zero
	}
	out.PriceMin, out.PriceMax = &lo, &hi

	return out, nil
}

// FiltersDiffer reports whether a and b select different rows once both are
// normalized against ceiling, so an unset bound equals its default. Sort order
// is ignored.
func FiltersDiffer(a, b FilterSpec, ceiling decimal.Decimal) bool {
	a, b = a.rowFilter(ceiling), b.rowFilter(ceiling)
	if a.SearchText != b.SearchText || a.Category != b.Category || a.Brand != b.Brand {
		return true
	}
	return !sameBound(a.PriceMin, b.PriceMin) || !sameBound(a.PriceMax, b.PriceMax)
}

// rowFilter drops the sort key; Normalize can only fail on that key.
func (f FilterSpec) rowFilter(ceiling decimal.Decimal) FilterSpec {
	f.Sort = ""
	n, _ := f.Normalize(ceiling)
	return n
}

func sameBound(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type PageRequest struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

func (p PageRequest) validate() error {
	if p.Number < 1 {
		return rejected("page number must be >= 1, got %d", p.Number)
	}
	if p.Size < 1 {
		return rejected("page size must be > 0, got %d", p.Size)
	}
	// Number*Size must fit in an int so the row range never wraps.
	if p.Number > math.MaxInt/p.Size {
		return rejected("page number %d out of range for page size %d", p.Number, p.Size)
	}
	return nil
}

func (p PageRequest) offset() int { return (p.Number - 1) * p.Size }

type PageResult struct {
	Items      []Product `json:"items"`
	TotalCount int       `json:"total_count"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// TotalPages is ceil(total/size), zero for an empty result.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
