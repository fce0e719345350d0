package catalog

import (
	"context"
	"sync"
)

// View is the browsing state of one shopper: the current filter and page, and
// the page that is on screen. Each query is tagged with a sequence number and
// only the most recently issued one may replace the visible result.
type View struct {
	engine   *Engine
	pageSize int

	mu      sync.Mutex
	spec    FilterSpec
	page    int
	seq     uint64
	current PageResult
	lastErr error
}

type ViewSnapshot struct {
	Filter FilterSpec `json:"filter"`
	Page   int        `json:"page"`
	Result PageResult `json:"result"`
	Error  string     `json:"error,omitempty"`
}

func NewView(engine *Engine, pageSize int) *View {
	return &View{
		engine:   engine,
		pageSize: pageSize,
		page:     1,
		spec:     FilterSpec{Sort: SortNewest},
		current:  PageResult{Items: []Product{}, PageSize: pageSize},
	}
}

// Navigate moves the view to spec and page. When any filter field other than
// the sort key changed, page is ignored and the view goes back to page 1.
// A request the engine would reject leaves the view untouched; the returned
// snapshot is the current one with the rejection attached.
func (v *View) Navigate(ctx context.Context, spec FilterSpec, page int) (ViewSnapshot, error) {
	v.mu.Lock()
	if FiltersDiffer(v.spec, spec, v.engine.priceCeiling) || page < 1 {
		page = 1
	}
	if _, err := v.engine.BuildQuery(spec, PageRequest{Number: page, Size: v.pageSize}); err != nil {
		snap := v.snapshotLocked()
		snap.Error = err.Error()
		v.mu.Unlock()
		return snap, err
	}
	v.spec, v.page = spec, page
	v.mu.Unlock()

	return v.Refresh(ctx)
}

// Refresh re-runs the query for the current state.
func (v *View) Refresh(ctx context.Context) (ViewSnapshot, error) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	spec, page := v.spec, PageRequest{Number: v.page, Size: v.pageSize}
	v.mu.Unlock()

	res, err := v.engine.Query(ctx, spec, page)

	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.seq {
		v.engine.metrics.superseded()
		return v.snapshotLocked(), ErrSuperseded
	}
	if err != nil {
		v.lastErr = err
		return v.snapshotLocked(), err
	}
	v.current, v.lastErr = res, nil
	return v.snapshotLocked(), nil
}

func (v *View) Snapshot() ViewSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() ViewSnapshot {
	s := ViewSnapshot{
		Filter: v.spec,
		Page:   v.page,
		Result: v.current,
	}
	s.Result.Items = append([]Product(nil), v.current.Items...)
	if s.Result.Items == nil {
		s.Result.Items = []Product{}
	}
	if v.lastErr != nil {
		s.Error = v.lastErr.Error()
	}
	return s
}
