package storefront

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/catalog"
)

var ErrInvalidSession = errors.New("invalid session id")

const (
	DefaultMaxSessions = 10000
	DefaultSessionTTL  = 30 * time.Minute
)

// Session is one shopper: a cart and a browsing view, created together and
// living as long as the registry keeps them.
type Session struct {
	ID   string
	Cart *cart.Store
	View *catalog.View
}

type Registry struct {
	engine      *catalog.Engine
	storage     cart.Storage
	pageSize    int
	log         *zap.Logger
	cartMetrics *cart.Metrics

	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

type RegistryDeps struct {
	Engine      *catalog.Engine
	Storage     cart.Storage
	PageSize    int
	Log         *zap.Logger
	CartMetrics *cart.Metrics

	// MaxSessions bounds the live sessions; the least recently used one is
	// dropped first. IdleTTL drops sessions nobody touched for that long.
	// Carts are already persisted, so a dropped session reopens intact.
	MaxSessions int
	IdleTTL     time.Duration
}

func NewRegistry(deps RegistryDeps) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.MaxSessions <= 0 {
		deps.MaxSessions = DefaultMaxSessions
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultSessionTTL
	}
	return &Registry{
		engine:      deps.Engine,
		storage:     deps.Storage,
		pageSize:    deps.PageSize,
		log:         deps.Log,
		cartMetrics: deps.CartMetrics,
		sessions:    expirable.NewLRU[string, *Session](deps.MaxSessions, nil, deps.IdleTTL),
	}
}

func cartKey(sessionID string) string {
	return cart.StorageKey + ":" + sessionID
}

// Create starts a fresh session with a new random id.
func (r *Registry) Create() *Session {
	s, _ := r.Open(uuid.NewString())
	return s
}

// Open returns the live session for id, rebuilding it from storage when this
// process has not seen it yet.
func (r *Registry) Open(id string) (*Session, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidSession
	}
	id = u.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions.Get(id); ok {
		r.sessions.Add(id, s) // restarts the idle clock
		return s, nil
	}

	log := r.log.With(zap.String("session_id", id))
	s := &Session{
		ID:   id,
		Cart: cart.NewStore(r.storage, log, cart.WithKey(cartKey(id)), cart.WithMetrics(r.cartMetrics)),
		View: catalog.NewView(r.engine, r.pageSize),
	}
	r.sessions.Add(id, s)
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}
