package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemSource is an in-process product table with the same predicate semantics
// as the Postgres source. NULL optional columns never match eq or ilike.
type MemSource struct {
	mu sync.RWMutex
	m  map[string]Product
}

func NewMemSource(products ...Product) *MemSource {
	s := &MemSource{m: make(map[string]Product, len(products))}
	for _, p := range products {
		s.m[p.ID] = p
	}
	return s
}

// DemoProducts is the seed data used by the in-memory deployment.
func DemoProducts(now time.Time) []Product {
	mk := func(id, name, price, cat, brand string, age time.Duration) Product {
		return Product{
			ID:        id,
			Name:      name,
			Price:     decimal.RequireFromString(price),
			Category:  Label(cat),
			Brand:     Label(brand),
			CreatedAt: now.Add(-age).UTC(),
		}
	}
	return []Product{
		mk("p1", "Mechanical Keyboard", "49.90", "peripherals", "Keychron", 10*time.Hour),
		mk("p2", "Wireless Mouse", "19.90", "peripherals", "Logitech", 9*time.Hour),
		mk("p3", "USB-C Hub", "34.00", "accessories", "Anker", 8*time.Hour),
		mk("p4", "27in Monitor", "229.00", "displays", "Dell", 7*time.Hour),
		mk("p5", "Laptop Stand", "29.99", "accessories", "", 6*time.Hour),
		mk("p6", "Webcam HD", "59.00", "", "Logitech", 5*time.Hour),
		mk("p7", "Noise Cancelling Headphones", "199.00", "audio", "Sony", 4*time.Hour),
		mk("p8", "Desk Mat", "12.50", "accessories", "", 3*time.Hour),
		mk("p9", "Gaming Mouse", "39.90", "peripherals", "Razer", 2*time.Hour),
		mk("p10", "Bluetooth Speaker", "45.00", "audio", "JBL", 1*time.Hour),
	}
}

func (s *MemSource) Ping(ctx context.Context) error { return nil }

func (s *MemSource) CountAndSelect(ctx context.Context, q SelectQuery) ([]Product, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if q.Offset < 0 || q.Limit < 0 {
		return nil, 0, rejected("negative range offset=%d limit=%d", q.Offset, q.Limit)
	}

	match, err := compileFilters(q.Filters)
	if err != nil {
		return nil, 0, err
	}
	less, err := comparator(q.Order)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	all := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		if match(p) {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })

	total := len(all)
	if q.Offset >= total {
		return []Product{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Limit < total-q.Offset {
		end = q.Offset + q.Limit
	}
	return all[q.Offset:end], total, nil
}

func (s *MemSource) Distinct(ctx context.Context, field Field) ([]*string, error) {
	if field != FieldCategory && field != FieldBrand {
		return nil, rejected("distinct on %q", field)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*string, 0, len(s.m))
	for _, p := range s.m {
		if field == FieldCategory {
			out = append(out, p.Category)
		} else {
			out = append(out, p.Brand)
		}
	}
	return out, nil
}

func (s *MemSource) Create(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[p.ID]; ok {
		return rejected("product %q exists", p.ID)
	}
	s.m[p.ID] = p
	return nil
}

func (s *MemSource) Update(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.m[p.ID]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	s.m[p.ID] = p
	return p, nil
}

func (s *MemSource) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}
	delete(s.m, id)
	return nil
}

func textField(p Product, f Field) (string, bool) {
	switch f {
	case FieldID:
		return p.ID, true
	case FieldName:
		return p.Name, true
	case FieldCategory:
		return labelValue(p.Category), p.Category != nil
	case FieldBrand:
		return labelValue(p.Brand), p.Brand != nil
	}
	return "", false
}

func compileFilters(preds []Predicate) (func(Product) bool, error) {
	checks := make([]func(Product) bool, 0, len(preds))

	for _, pr := range preds {
		switch pr.Op {
		case OpEq, OpILike:
			if _, ok := textFields[pr.Field]; !ok {
				return nil, rejected("%s on non-text field %q", pr.Op, pr.Field)
			}
			v, ok := pr.Value.(string)
			if !ok {
				return nil, rejected("%s %q expects a string", pr.Op, pr.Field)
			}
			field := pr.Field
			if pr.Op == OpEq {
				checks = append(checks, func(p Product) bool {
					got, present := textField(p, field)
					return present && got == v
				})
				continue
			}
			re, err := likeRegexp(v)
			if err != nil {
				return nil, rejected("bad pattern %q", v)
			}
			checks = append(checks, func(p Product) bool {
				got, present := textField(p, field)
				return present && re.MatchString(got)
			})

		case OpGTE, OpLTE:
			if pr.Field != FieldPrice {
				return nil, rejected("%s on unsupported field %q", pr.Op, pr.Field)
			}
			bound, ok := pr.Value.(decimal.Decimal)
			if !ok {
				return nil, rejected("%s %q expects a decimal", pr.Op, pr.Field)
			}
			if pr.Op == OpGTE {
				checks = append(checks, func(p Product) bool { return p.Price.GreaterThanOrEqual(bound) })
			} else {
				checks = append(checks, func(p Product) bool { return p.Price.LessThanOrEqual(bound) })
			}

		default:
			return nil, rejected("unknown operator %q", pr.Op)
		}
	}

	return func(p Product) bool {
		for _, c := range checks {
			if !c(p) {
				return false
			}
		}
		return true
	}, nil
}

var textFields = map[Field]struct{}{
	FieldID: {}, FieldName: {}, FieldCategory: {}, FieldBrand: {},
}

// likeRegexp translates an ilike pattern (% and _ wildcards, backslash escape)
// into a case-insensitive anchored regexp.
func likeRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func comparator(o Order) (func(a, b Product) bool, error) {
	var less func(a, b Product) bool
	switch o.Field {
	case FieldPrice:
		less = func(a, b Product) bool { return a.Price.LessThan(b.Price) }
	case FieldCreatedAt:
		less = func(a, b Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case FieldID, FieldName:
		less = func(a, b Product) bool {
			x, _ := textField(a, o.Field)
			y, _ := textField(b, o.Field)
			return x < y
		}
	case "":
		return func(a, b Product) bool { return a.ID < b.ID }, nil
	default:
		return nil, rejected("cannot order by %q", o.Field)
	}
	if o.Desc {
		return func(a, b Product) bool { return less(b, a) }, nil
	}
	return less, nil
}
