package settlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/common"
)

// SettleInput is the payload of POST /api/v1/settlements.
type SettleInput struct {
	Items      []LineRequest `json:"items" validate:"required,min=1,dive"`
	Membership bool          `json:"membership"`
}

// Handler exposes the settlement engine over HTTP.
type Handler struct {
	Engine   *Engine
	Validate *validator.Validate
}

// NewHandler constructs a Handler with a fresh validator.
func NewHandler(engine *Engine) *Handler {
	return &Handler{Engine: engine, Validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Settle handles POST /api/v1/settlements.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement engine not configured", nil)
		return
	}
	var in SettleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validator().Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", validationDetails(err))
		return
	}
	receipt, err := h.Engine.Settle(r.Context(), in.Items, in.Membership)
	if err != nil {
		common.WriteError(w, AsAppError(err))
		return
	}
	common.Data(w, http.StatusCreated, receipt)
}

// TopUp handles GET /api/v1/products/{name}/top-up?quantity=N.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	name, qty, ok := h.lineParams(w, r)
	if !ok {
		return
	}
	extra, available, err := h.Engine.CheckPromotionTopUp(name, qty)
	if err != nil {
		common.WriteError(w, AsAppError(err))
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"extra": extra, "available": available})
}

// NonPromotable handles GET /api/v1/products/{name}/non-promotable?quantity=N.
func (h *Handler) NonPromotable(w http.ResponseWriter, r *http.Request) {
	name, qty, ok := h.lineParams(w, r)
	if !ok {
		return
	}
	units, err := h.Engine.NonPromotableUnits(name, qty)
	if err != nil {
		common.WriteError(w, AsAppError(err))
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"units": units})
}

// FreeCount handles GET /api/v1/products/{name}/free-count.
func (h *Handler) FreeCount(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement engine not configured", nil)
		return
	}
	name := chi.URLParam(r, "name")
	free, err := h.Engine.PromotionFreeCount(name)
	if err != nil {
		common.WriteError(w, AsAppError(err))
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"free": free})
}

func (h *Handler) lineParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement engine not configured", nil)
		return "", 0, false
	}
	name := chi.URLParam(r, "name")
	if strings.TrimSpace(name) == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "product name is required", nil)
		return "", 0, false
	}
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "quantity must be a positive integer", map[string]any{"field": "quantity"})
		return "", 0, false
	}
	return name, qty, true
}

func (h *Handler) validator() *validator.Validate {
	if h.Validate == nil {
		h.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return h.Validate
}

// AsAppError maps engine errors onto API error codes.
func AsAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrInvalidRequest):
		return &common.AppError{Code: "INVALID_REQUEST", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, catalog.ErrInsufficientStock):
		return &common.AppError{Code: "INSUFFICIENT_STOCK", Message: err.Error(), HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, catalog.ErrDataIntegrity):
		return &common.AppError{Code: "DATA_INTEGRITY", Message: err.Error(), HTTPStatus: http.StatusInternalServerError, Err: err}
	default:
		return &common.AppError{Code: "INTERNAL", Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Namespace(), fe.Tag()))
	}
	return map[string]any{"fields": fields}
}
