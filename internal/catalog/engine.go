package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const facetTimeout = 2 * time.Second

// Engine turns filter, sort and page parameters into a single source request
// and shapes the answer into a PageResult.
type Engine struct {
	src          Source
	log          *zap.Logger
	metrics      *Metrics
	priceCeiling decimal.Decimal
}

type EngineOption func(*Engine)

func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithPriceCeiling(c decimal.Decimal) EngineOption {
	return func(e *Engine) { e.priceCeiling = c }
}

func NewEngine(src Source, log *zap.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{src: src, log: log, priceCeiling: DefaultPriceCeiling}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Source() Source { return e.src }

// BuildQuery returns the source request for spec and page. Predicates come
// out in a fixed order: search, category, brand, price bounds.
func (e *Engine) BuildQuery(spec FilterSpec, page PageRequest) (SelectQuery, error) {
	if err := page.validate(); err != nil {
		return SelectQuery{}, err
	}
	spec, err := spec.Normalize(e.priceCeiling)
	if err != nil {
		return SelectQuery{}, err
	}

	filters := make([]Predicate, 0, 5)
	if spec.SearchText != "" {
		filters = append(filters, Predicate{Op: OpILike, Field: FieldName, Value: containsPattern(spec.SearchText)})
	}
	if spec.Category != "" {
		filters = append(filters, Predicate{Op: OpEq, Field: FieldCategory, Value: spec.Category})
	}
	if spec.Brand != "" {
		filters = append(filters, Predicate{Op: OpEq, Field: FieldBrand, Value: spec.Brand})
	}
	filters = append(filters,
		Predicate{Op: OpGTE, Field: FieldPrice, Value: *spec.PriceMin},
		Predicate{Op: OpLTE, Field: FieldPrice, Value: *spec.PriceMax},
	)

	return SelectQuery{
		Filters: filters,
		Order:   orderFor(spec.Sort),
		Offset:  page.offset(),
		Limit:   page.Size,
	}, nil
}

func orderFor(k SortKey) Order {
	switch k {
	case SortPriceAsc:
		return Order{Field: FieldPrice}
	case SortPriceDesc:
		return Order{Field: FieldPrice, Desc: true}
	default:
		return Order{Field: FieldCreatedAt, Desc: true}
	}
}

// Query runs one catalog request. On error the returned PageResult is the zero
// value and the error wraps ErrSourceUnavailable or ErrQueryRejected.
func (e *Engine) Query(ctx context.Context, spec FilterSpec, page PageRequest) (PageResult, error) {
	q, err := e.BuildQuery(spec, page)
	if err != nil {
		e.metrics.observe(time.Now(), outcomeRejected)
		return PageResult{}, err
	}

	start := time.Now()
	rows, total, err := e.src.CountAndSelect(ctx, q)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrQueryRejected) {
			e.metrics.observe(start, outcomeRejected)
		} else {
			e.metrics.observe(start, outcomeUnavailable)
		}
		e.log.Warn("catalog query failed", zap.Error(err), zap.Int("page", page.Number))
		return PageResult{}, err
	}
	e.metrics.observe(start, outcomeOK)

	res := PageResult{
		TotalCount: total,
		TotalPages: TotalPages(total, page.Size),
		Page:       page.Number,
		PageSize:   page.Size,
		Items:      make([]Product, 0, len(rows)),
	}
	if res.TotalPages == 0 {
		return res, nil
	}
	if len(rows) > page.Size {
		rows = rows[:page.Size]
	}
	res.Items = append(res.Items, rows...)
	return res, nil
}

// DistinctValues lists the choices for a facet. Failures degrade to an empty
// list so a broken facet never blocks product listing.
func (e *Engine) DistinctValues(ctx context.Context, field Field) []string {
	if field != FieldCategory && field != FieldBrand {
		return []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, facetTimeout)
	defer cancel()

	raw, err := e.src.Distinct(ctx, field)
	if err != nil {
		e.log.Warn("facet fetch failed", zap.Error(err), zap.String("field", string(field)))
		return []string{}
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil || *v == "" {
			continue
		}
		if _, dup := seen[*v]; dup {
			continue
		}
		seen[*v] = struct{}{}
		out = append(out, *v)
	}
	sort.Strings(out)
	return out
}

// Product looks a single product up by id.
func (e *Engine) Product(ctx context.Context, id string) (Product, bool, error) {
	if id == "" {
		return Product{}, false, nil
	}
	rows, _, err := e.src.CountAndSelect(ctx, SelectQuery{
		Filters: []Predicate{{Op: OpEq, Field: FieldID, Value: id}},
		Order:   Order{Field: FieldID},
		Limit:   1,
	})
	if err != nil {
		return Product{}, false, classify(err)
	}
	if len(rows) == 0 {
		return Product{}, false, nil
	}
	return rows[0], true, nil
}
