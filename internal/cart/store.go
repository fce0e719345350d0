package cart

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/catalog"
)

// Store is one shopper's cart. Mutations are applied in memory and then the
// whole cart is written to Storage; a failed write is logged and otherwise
// ignored.
type Store struct {
	storage Storage
	key     string
	log     *zap.Logger
	metrics *Metrics

	mu    sync.Mutex
	lines []Line
}

type Option func(*Store)

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

func WithMetrics(m *Metrics) Option { return func(s *Store) { s.metrics = m } }

// NewStore rehydrates the cart saved under the store key. Missing, unreadable
// or corrupt data yields an empty cart.
func NewStore(storage Storage, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{storage: storage, key: StorageKey, log: log}
	for _, o := range opts {
		o(s)
	}
	s.lines = s.load()
	return s
}

func (s *Store) load() []Line {
	raw, ok, err := s.storage.Read(s.key)
	if err != nil {
		s.log.Warn("cart read failed", zap.String("key", s.key), zap.Error(err))
		return []Line{}
	}
	if !ok {
		return []Line{}
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn("discarding corrupt cart", zap.String("key", s.key), zap.Error(err))
		return []Line{}
	}
	if !validLines(snap.Lines) {
		s.log.Warn("discarding invalid cart", zap.String("key", s.key))
		return []Line{}
	}
	if snap.Lines == nil {
		return []Line{}
	}
	return snap.Lines
}

// Add puts one unit of p in the cart. A repeat add bumps the quantity and
// keeps the original snapshot.
func (s *Store) Add(p catalog.Product) (Line, error) {
	if p.ID == "" {
		return Line{}, ErrEmptyProductID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ProductID == p.ID {
			s.lines[i].Quantity++
			s.persistLocked()
			return s.lines[i], nil
		}
	}

	l := Line{ProductID: p.ID, Snapshot: p, Quantity: 1}
	s.lines = append(s.lines, l)
	s.persistLocked()
	return l, nil
}

// Remove drops the line for productID. Removing an absent product is a no-op.
func (s *Store) Remove(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = []Line{}
	s.persistLocked()
}

// Total is recomputed from the snapshots on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// LineCount is the number of distinct products, the figure on the cart badge.
func (s *Store) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Quantity is the number of units across all lines.
func (s *Store) Quantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line{}, s.lines...)
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(snapshot{Version: snapshotVersion, Lines: s.lines})
	if err == nil {
		err = s.storage.Write(s.key, string(raw))
	}
	if err != nil {
		s.metrics.persistFailed()
		s.log.Error("cart persist failed", zap.String("key", s.key), zap.Error(err))
	}
}
