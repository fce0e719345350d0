package catalog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(products ...Product) *Engine {
	if len(products) == 0 {
		products = DemoProducts(t0)
	}
	return NewEngine(NewMemSource(products...), zap.NewNop())
}

func ids(ps []Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

type stubSource struct {
	rows     []Product
	total    int
	err      error
	distinct []*string
	lastQ    SelectQuery
}

func (s *stubSource) CountAndSelect(_ context.Context, q SelectQuery) ([]Product, int, error) {
	s.lastQ = q
	return s.rows, s.total, s.err
}

func (s *stubSource) Distinct(context.Context, Field) ([]*string, error) { return s.distinct, s.err }
func (s *stubSource) Ping(context.Context) error                         { return s.err }

func TestBuildQuery_PredicateOrder(t *testing.T) {
	e := NewEngine(&stubSource{}, nil)

	q, err := e.BuildQuery(FilterSpec{
		SearchText: "50%_off",
		Category:   "audio",
		Brand:      "Sony",
		PriceMin:   dec("100"),
		PriceMax:   dec("10"),
		Sort:       SortPriceDesc,
	}, PageRequest{Number: 3, Size: 8})
	require.NoError(t, err)

	require.Len(t, q.Filters, 5)
	assert.Equal(t, Predicate{Op: OpILike, Field: FieldName, Value: `%50\%\_off%`}, q.Filters[0])
	assert.Equal(t, Predicate{Op: OpEq, Field: FieldCategory, Value: "audio"}, q.Filters[1])
	assert.Equal(t, Predicate{Op: OpEq, Field: FieldBrand, Value: "Sony"}, q.Filters[2])
	assert.Equal(t, OpGTE, q.Filters[3].Op)
	assert.Equal(t, "10", q.Filters[3].Value.(decimal.Decimal).String())
	assert.Equal(t, OpLTE, q.Filters[4].Op)
	assert.Equal(t, "100", q.Filters[4].Value.(decimal.Decimal).String())

	assert.Equal(t, Order{Field: FieldPrice, Desc: true}, q.Order)
	assert.Equal(t, 16, q.Offset)
	assert.Equal(t, 8, q.Limit)
}

func TestBuildQuery_EmptySpecAlwaysBoundsPrice(t *testing.T) {
	q, err := NewEngine(&stubSource{}, nil).BuildQuery(FilterSpec{}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)

	require.Len(t, q.Filters, 2)
	assert.Equal(t, FieldPrice, q.Filters[0].Field)
	assert.Equal(t, FieldPrice, q.Filters[1].Field)
	assert.Equal(t, Order{Field: FieldCreatedAt, Desc: true}, q.Order)
	assert.Zero(t, q.Offset)
}

func TestBuildQuery_RejectsBadPage(t *testing.T) {
	e := NewEngine(&stubSource{}, nil)

	_, err := e.BuildQuery(FilterSpec{}, PageRequest{Number: 0, Size: 8})
	assert.True(t, errors.Is(err, ErrQueryRejected))

	_, err = e.BuildQuery(FilterSpec{}, PageRequest{Number: 1, Size: 0})
	assert.True(t, errors.Is(err, ErrQueryRejected))
}

func TestQuery_NewestFirstByDefault(t *testing.T) {
	res, err := newTestEngine().Query(context.Background(), FilterSpec{}, PageRequest{Number: 1, Size: 4})
	require.NoError(t, err)

	assert.Equal(t, 10, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []string{"p10", "p9", "p8", "p7"}, ids(res.Items))
}

func TestQuery_LastPageIsPartial(t *testing.T) {
	res, err := newTestEngine().Query(context.Background(), FilterSpec{}, PageRequest{Number: 3, Size: 4})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []string{"p2", "p1"}, ids(res.Items))
}

func TestQuery_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	res, err := newTestEngine().Query(context.Background(),
		FilterSpec{SearchText: "MOUSE", Sort: SortPriceAsc}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)

	assert.Equal(t, []string{"p2", "p9"}, ids(res.Items))
	assert.Equal(t, 2, res.TotalCount)
}

func TestQuery_SearchWildcardsAreLiteral(t *testing.T) {
	e := newTestEngine(
		Product{ID: "a", Name: "100% Cotton Tee", Price: decimal.NewFromInt(10), CreatedAt: t0},
		Product{ID: "b", Name: "1000 Cotton Tee", Price: decimal.NewFromInt(10), CreatedAt: t0},
	)
	res, err := e.Query(context.Background(), FilterSpec{SearchText: "100%"}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(res.Items))
}

func TestQuery_CategoryBrandAndPriceCompose(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	page := PageRequest{Number: 1, Size: 8}

	res, err := e.Query(ctx, FilterSpec{Category: "peripherals", Sort: SortPriceAsc}, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p9", "p1"}, ids(res.Items))

	res, err = e.Query(ctx, FilterSpec{Category: "peripherals", Brand: "Logitech"}, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids(res.Items))

	res, err = e.Query(ctx, FilterSpec{PriceMin: dec("30"), PriceMax: dec("50"), Sort: SortPriceDesc}, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p10", "p9", "p3"}, ids(res.Items))
}

func TestQuery_InvertedPriceRangeIsClamped(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	page := PageRequest{Number: 1, Size: 8}

	straight, err := e.Query(ctx, FilterSpec{PriceMin: dec("30"), PriceMax: dec("50")}, page)
	require.NoError(t, err)
	inverted, err := e.Query(ctx, FilterSpec{PriceMin: dec("50"), PriceMax: dec("30")}, page)
	require.NoError(t, err)

	assert.Equal(t, ids(straight.Items), ids(inverted.Items))
	assert.Equal(t, straight.TotalCount, inverted.TotalCount)
}

func TestQuery_NullOptionalFieldsDoNotFail(t *testing.T) {
	e := newTestEngine()

	res, err := e.Query(context.Background(), FilterSpec{Brand: "Logitech"}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p2", "p6"}, ids(res.Items), "p6 has no category, p5 and p8 have no brand")
}

func TestQuery_NoMatchesMeansNoPages(t *testing.T) {
	res, err := newTestEngine().Query(context.Background(), FilterSpec{SearchText: "toaster"}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalCount)
	assert.Equal(t, 0, res.TotalPages)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestQuery_ZeroTotalDropsStrayRows(t *testing.T) {
	src := &stubSource{rows: []Product{{ID: "ghost"}}, total: 0}
	res, err := NewEngine(src, nil).Query(context.Background(), FilterSpec{}, PageRequest{Number: 1, Size: 8})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestQuery_OutOfRangePageIsNotCorrected(t *testing.T) {
	res, err := newTestEngine().Query(context.Background(), FilterSpec{Category: "audio"}, PageRequest{Number: 5, Size: 8})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, 5, res.Page)
	assert.Empty(t, res.Items)
}

func TestQuery_HugePageIsRejectedNotWrapped(t *testing.T) {
	e := newTestEngine()

	_, err := e.BuildQuery(FilterSpec{}, PageRequest{Number: math.MaxInt, Size: 8})
	assert.ErrorIs(t, err, ErrQueryRejected)

	res, err := e.Query(context.Background(), FilterSpec{}, PageRequest{Number: math.MaxInt, Size: 8})
	assert.ErrorIs(t, err, ErrQueryRejected)
	assert.Nil(t, res.Items)

	res, err = e.Query(context.Background(), FilterSpec{}, PageRequest{Number: math.MaxInt, Size: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 10, res.TotalCount)
}

func TestMemSource_NegativeRangeRejected(t *testing.T) {
	_, _, err := NewMemSource(DemoProducts(t0)...).CountAndSelect(context.Background(), SelectQuery{Offset: -16, Limit: 8})
	assert.ErrorIs(t, err, ErrQueryRejected)
}

func TestQuery_ClassifiesErrors(t *testing.T) {
	ctx := context.Background()
	page := PageRequest{Number: 1, Size: 8}

	_, err := NewEngine(&stubSource{err: errors.New("connection reset")}, nil).Query(ctx, FilterSpec{}, page)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.False(t, errors.Is(err, ErrQueryRejected))

	_, err = NewEngine(&stubSource{err: rejected("column missing")}, nil).Query(ctx, FilterSpec{}, page)
	assert.True(t, errors.Is(err, ErrQueryRejected))

	_, err = NewEngine(&stubSource{err: context.DeadlineExceeded}, nil).Query(ctx, FilterSpec{}, page)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDistinctValues(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	first := e.DistinctValues(ctx, FieldCategory)
	second := e.DistinctValues(ctx, FieldCategory)

	assert.Equal(t, []string{"accessories", "audio", "displays", "peripherals"}, first)
	assert.Equal(t, first, second)

	brands := e.DistinctValues(ctx, FieldBrand)
	assert.NotContains(t, brands, "")
	assert.Len(t, brands, 7)
}

func TestDistinctValues_DropsNullAndEmpty(t *testing.T) {
	empty, a, b := "", "Sony", "JBL"
	src := &stubSource{distinct: []*string{nil, &a, &empty, &b, &a, nil}}

	assert.Equal(t, []string{"JBL", "Sony"}, NewEngine(src, nil).DistinctValues(context.Background(), FieldBrand))
}

func TestDistinctValues_FailureDegradesToEmpty(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	got := NewEngine(src, nil).DistinctValues(context.Background(), FieldCategory)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDistinctValues_UnknownField(t *testing.T) {
	assert.Empty(t, newTestEngine().DistinctValues(context.Background(), FieldPrice))
}

func TestProduct(t *testing.T) {
	e := newTestEngine()

	p, ok, err := e.Product(context.Background(), "p4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "27in Monitor", p.Name)

	_, ok, err = e.Product(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
