package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"sweet-shop/internal/domain"
	"sweet-shop/internal/middleware"
	"sweet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNotFinite = errors.New("price must be finite")

// maxQuantity is the largest value the INTEGER quantity column holds.
// The validate tags below mirror the DECIMAL(10,2) and INTEGER column bounds.
const maxQuantity = math.MaxInt32

// Price is a JSON price given either as a number or as a numeric string ("2.50").
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("price %s is not a number", data)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errNotFinite
	}
	*p = Price(v)
	return nil
}

// SweetRequest is the body of create and update. Any id in the body is ignored.
type SweetRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Price    *Price `json:"price" validate:"required,gte=0,lte=99999999.99"`
	Quantity *int   `json:"quantity" validate:"omitempty,gte=0,lte=2147483647"`
}

func (req SweetRequest) toDomain() *domain.Sweet {
	return &domain.Sweet{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Price:    float64(*req.Price),
		Quantity: req.Quantity,
	}
}

// SweetHandler handles HTTP requests for the catalog and stock
type SweetHandler struct {
	sweetService service.SweetService
	logger       *zap.Logger
}

// NewSweetHandler creates a new SweetHandler
func NewSweetHandler(sweetService service.SweetService, logger *zap.Logger) *SweetHandler {
	return &SweetHandler{
		sweetService: sweetService,
		logger:       logger,
	}
}

// RegisterRoutes registers all sweet routes
func (h *SweetHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/sweets", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Get("/search", h.Search)
		r.Post("/{id}/purchase", h.Purchase)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/restock", h.Restock)
		})
	})
}

// Create handles adding a sweet to the catalog
func (h *SweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SweetRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	sweet, err := h.sweetService.Create(r.Context(), req.toDomain())
	if err != nil {
		respondServiceError(w, h.logger, err, "create sweet")
		return
	}

	h.logger.Info("Sweet created", zap.String("sweet_id", sweet.ID.String()), zap.String("name", sweet.Name), actor(r))
	middleware.RespondWithJSON(w, http.StatusCreated, sweet)
}

// List handles retrieving the whole catalog
func (h *SweetHandler) List(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.sweetService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list sweets")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sweets)
}

// Search handles filtered catalog queries
func (h *SweetHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := service.SearchFilter{
		Name:     query.Get("name"),
		Category: query.Get("category"),
	}

	var err error
	if filter.MinPrice, err = parseOptionalPrice(query.Get("minPrice")); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "minPrice must be a number")
		return
	}
	if filter.MaxPrice, err = parseOptionalPrice(query.Get("maxPrice")); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "maxPrice must be a number")
		return
	}

	sweets, err := h.sweetService.Search(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "search sweets")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sweets)
}

// Update handles overwriting a sweet
func (h *SweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	var req SweetRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	sweet, err := h.sweetService.Update(r.Context(), id, req.toDomain())
	if err != nil {
		respondServiceError(w, h.logger, err, "update sweet")
		return
	}

	h.logger.Info("Sweet updated", zap.String("sweet_id", id.String()), actor(r))
	middleware.RespondWithJSON(w, http.StatusOK, sweet)
}

// Delete handles removing a sweet
func (h *SweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	if err := h.sweetService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete sweet")
		return
	}

	h.logger.Info("Sweet deleted", zap.String("sweet_id", id.String()), actor(r))
	w.WriteHeader(http.StatusNoContent)
}

// Purchase handles buying ?quantity= units
func (h *SweetHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.changeStock(w, r, "purchase sweet", h.sweetService.Purchase)
}

// Restock handles adding ?quantity= units
func (h *SweetHandler) Restock(w http.ResponseWriter, r *http.Request) {
	h.changeStock(w, r, "restock sweet", h.sweetService.Restock)
}

func (h *SweetHandler) changeStock(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error),
) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		h.logger.Debug("Invalid quantity parameter", zap.String("quantity", r.URL.Query().Get("quantity")))
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be an integer")
		return
	}
	if quantity > maxQuantity {
		middleware.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("quantity must not exceed %d", maxQuantity))
		return
	}

	sweet, err := apply(r.Context(), id, quantity)
	if err != nil {
		respondServiceError(w, h.logger, err, action)
		return
	}

	h.logger.Info("Stock changed",
		zap.String("action", action),
		zap.String("sweet_id", id.String()),
		zap.Int("quantity", quantity),
		zap.Int("stock", sweet.Stock()),
		actor(r),
	)
	middleware.RespondWithJSON(w, http.StatusOK, sweet)
}

// actor names the authenticated caller in audit logs; purchases may be anonymous
func actor(r *http.Request) zap.Field {
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		return zap.String("user_id", userID)
	}
	return zap.String("user_id", "anonymous")
}

// sweetID parses the {id} path parameter. A value that is not a UUID cannot
// name a stored sweet, so it is reported as not found.
func (h *SweetHandler) sweetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Debug("Malformed sweet id", zap.String("id", raw))
		middleware.RespondWithError(w, http.StatusNotFound, "sweet not found")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalPrice(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errNotFinite
	}
	return &v, nil
}
