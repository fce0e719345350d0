package storefront

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

type Server struct {
	Sessions *Registry
	Engine   *catalog.Engine
	Log      *zap.Logger
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/sessions", s.createSession)

	r.Route("/sessions/{sid}", func(sr chi.Router) {
		sr.Get("/cart", s.getCart)
		sr.Post("/cart/items", s.addItem)
		sr.Delete("/cart/items/{productID}", s.removeItem)
		sr.Delete("/cart", s.clearCart)

		sr.Get("/browse", s.getBrowse)
		sr.Put("/browse", s.putBrowse)
		sr.Get("/facets", s.facets)
	})
}

type cartResp struct {
	SessionID string          `json:"session_id"`
	Lines     []cart.Line     `json:"lines"`
	LineCount int             `json:"line_count"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

func newCartResp(sess *Session) cartResp {
	return cartResp{
		SessionID: sess.ID,
		Lines:     sess.Cart.Lines(),
		LineCount: sess.Cart.LineCount(),
		Quantity:  sess.Cart.Quantity(),
		Total:     sess.Cart.Total(),
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.Sessions.Open(chi.URLParam(r, "sid"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid session", nil)
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Create()
	kit.WriteJSON(w, http.StatusCreated, newCartResp(sess))
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartResp(sess))
}

type addItemReq struct {
	ProductID string `json:"product_id"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req addItemReq
	if err := kit.ReadJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	pid := strings.TrimSpace(req.ProductID)
	if pid == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	p, found, err := s.Engine.Product(r.Context(), pid)
	if err != nil {
		s.Log.Warn("cart add lookup failed", zap.Error(err), zap.String("product_id", pid))
		catalog.WriteQueryError(w, r, err)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"product_id": pid})
		return
	}

	if _, err := sess.Cart.Add(p); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartResp(sess))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Cart.Remove(chi.URLParam(r, "productID"))
	kit.WriteJSON(w, http.StatusOK, newCartResp(sess))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Cart.Clear()
	kit.WriteJSON(w, http.StatusOK, newCartResp(sess))
}

func (s *Server) getBrowse(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, sess.View.Snapshot())
}

type browseReq struct {
	Filter catalog.FilterSpec `json:"filter"`
	Page   int                `json:"page"`
}

// putBrowse moves the session's view. The body always carries the visible
// page: on failure it is the previous one with the error attached.
func (s *Server) putBrowse(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req browseReq
	if err := kit.ReadJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	snap, err := sess.View.Navigate(r.Context(), req.Filter, req.Page)
	switch {
	case err == nil:
		kit.WriteJSON(w, http.StatusOK, snap)
	case errors.Is(err, catalog.ErrSuperseded):
		kit.WriteJSON(w, http.StatusConflict, snap)
	case errors.Is(err, catalog.ErrQueryRejected):
		kit.WriteJSON(w, http.StatusUnprocessableEntity, snap)
	default:
		kit.WriteJSON(w, http.StatusServiceUnavailable, snap)
	}
}

func (s *Server) facets(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string][]string{
		"category": s.Engine.DistinctValues(r.Context(), catalog.FieldCategory),
		"brand":    s.Engine.DistinctValues(r.Context(), catalog.FieldBrand),
	})
}
