package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

const tokenTTL = 15 * time.Minute

type Server struct {
	Log      *zap.Logger
	Creds    Credentials
	JWT      *TokenMaker
	Products catalog.Writer
	Now      func() time.Time
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := kit.ReadJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "email/password required", nil)
		return
	}

	if err := s.Creds.Verify(req.Email, req.Password); err != nil {
		kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	tok, err := s.JWT.New(normalizeEmail(req.Email), RoleAdmin, tokenTTL)
	if err != nil {
		s.Log.Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{AccessToken: tok})
}

type productReq struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	ImageURL    string          `json:"image_url"`
}

func (req productReq) product(id string, createdAt time.Time) (catalog.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalog.Product{}, errors.New("name required")
	}
	if req.Price.IsNegative() {
		return catalog.Product{}, errors.New("price must be >= 0")
	}
	return catalog.Product{
		ID:          id,
		Name:        name,
		Price:       req.Price,
		Description: strings.TrimSpace(req.Description),
		Category:    catalog.Label(strings.TrimSpace(req.Category)),
		Brand:       catalog.Label(strings.TrimSpace(req.Brand)),
		ImageURL:    catalog.Label(strings.TrimSpace(req.ImageURL)),
		CreatedAt:   createdAt,
	}, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := kit.ReadJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := req.product(uuid.NewString(), s.now())
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := s.Products.Create(r.Context(), p); err != nil {
		s.writeStoreError(w, r, err, p.ID)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productReq
	if err := kit.ReadJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := req.product(id, time.Time{})
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	saved, err := s.Products.Update(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, r, err, id)
		return
	}
	kit.WriteJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.Products.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, id string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
	case errors.Is(err, catalog.ErrQueryRejected):
		kit.WriteError(w, r, http.StatusConflict, "rejected", map[string]any{"cause": err.Error()})
	default:
		s.Log.Error("admin product write failed", zap.Error(err), zap.String("id", id))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	}
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
