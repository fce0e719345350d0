package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/pkg/kit"
)

type Server struct {
	Engine   *Engine
	PageSize int
	Log      *zap.Logger
}

// Routes registers the catalog endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Engine.Source().Ping(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)
	r.Get("/facets/{field}", s.facet)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	spec, page, err := ParseListQuery(r.URL.Query(), s.PageSize)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad query", map[string]any{"cause": err.Error()})
		return
	}

	res, err := s.Engine.Query(r.Context(), spec, page)
	if err != nil {
		WriteQueryError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok, err := s.Engine.Product(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("get product failed", zap.Error(err), zap.String("id", id))
		}
		WriteQueryError(w, r, err)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) facet(w http.ResponseWriter, r *http.Request) {
	field, err := ParseFacet(chi.URLParam(r, "field"))
	if err != nil {
		kit.WriteError(w, r, http.StatusNotFound, "unknown facet", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"field":  field,
		"values": s.Engine.DistinctValues(r.Context(), field),
	})
}

// WriteQueryError maps engine failures onto HTTP statuses.
func WriteQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrQueryRejected):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "query rejected", map[string]any{"cause": err.Error()})
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "catalog timeout", nil)
	default:
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	}
}

// ParseListQuery reads search, category, brand, price_min, price_max, sort and
// page from query parameters.
func ParseListQuery(v url.Values, pageSize int) (FilterSpec, PageRequest, error) {
	spec := FilterSpec{
		SearchText: v.Get("search"),
		Category:   v.Get("category"),
		Brand:      v.Get("brand"),
	}

	sort, err := ParseSortKey(v.Get("sort"))
	if err != nil {
		return FilterSpec{}, PageRequest{}, err
	}
	spec.Sort = sort

	if spec.PriceMin, err = parseBound(v.Get("price_min")); err != nil {
		return FilterSpec{}, PageRequest{}, err
	}
	if spec.PriceMax, err = parseBound(v.Get("price_max")); err != nil {
		return FilterSpec{}, PageRequest{}, err
	}

	page := PageRequest{Number: 1, Size: pageSize}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return FilterSpec{}, PageRequest{}, rejected("bad page %q", raw)
		}
		page.Number = n
	}
	return spec, page, nil
}

func parseBound(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, rejected("bad price %q", raw)
	}
	return &d, nil
}
