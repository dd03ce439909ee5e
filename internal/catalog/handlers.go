package catalog

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/toko-kasir/internal/common"
)

// Lister supplies the product listing. The settlement engine implements it so listings
// observe the same critical section as purchases.
type Lister interface {
	ListProducts() []ProductView
}

// Handler exposes public catalog endpoints.
type Handler struct {
	lister Lister
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Lister Lister
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{lister: cfg.Lister}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	items := h.lister.ListProducts()
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	common.Data(w, http.StatusOK, items)
}
