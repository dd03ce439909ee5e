package settlement_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/settlement"
)

func routes(h *settlement.Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/settlements", h.Settle)
	r.Get("/api/v1/products/{name}/top-up", h.TopUp)
	r.Get("/api/v1/products/{name}/non-promotable", h.NonPromotable)
	r.Get("/api/v1/products/{name}/free-count", h.FreeCount)
	return r
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestSettleHandlerCreatesReceipt(t *testing.T) {
	engine, _, _ := newEngine(t,
		row{name: "콜라", price: 1000, qty: 10, promo: "탄산2+1"},
		row{name: "콜라", price: 1000, qty: 10},
		row{name: "에너지바", price: 2000, qty: 5},
	)
	srv := routes(settlement.NewHandler(engine))

	body := `{"items":[{"name":"콜라","quantity":3},{"name":"에너지바","quantity":5}],"membership":true}`
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/settlements", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Data struct {
			ID        string `json:"id"`
			Items     []struct {
				Name      string `json:"name"`
				Quantity  int    `json:"quantity"`
				Promotion bool   `json:"promotion"`
			} `json:"items"`
			FreeItems []struct {
				Name     string `json:"name"`
				Quantity int    `json:"quantity"`
			} `json:"freeItems"`
			Total      int64 `json:"totalAmount"`
			Promotion  int64 `json:"promotionDiscountAmount"`
			Membership int64 `json:"membershipDiscountAmount"`
			Final      int64 `json:"finalAmount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	require.Len(t, resp.Data.Items, 2)
	require.True(t, resp.Data.Items[0].Promotion)
	require.Equal(t, 1, resp.Data.FreeItems[0].Quantity)
	require.Equal(t, int64(13000), resp.Data.Total)
	require.Equal(t, int64(1000), resp.Data.Promotion)
	require.Equal(t, int64(3000), resp.Data.Membership)
	require.Equal(t, int64(9000), resp.Data.Final)
}

func TestSettleHandlerErrors(t *testing.T) {
	engine, _, _ := newEngine(t,
		row{name: "물", price: 500, qty: 2},
		row{name: "감자칩", price: 1500, qty: 5, promo: "없는행사"},
	)
	srv := routes(settlement.NewHandler(engine))

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"items":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"no items", `{"items":[]}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"zero quantity", `{"items":[{"name":"물","quantity":0}]}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown product", `{"items":[{"name":"사이다","quantity":1}]}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"insufficient stock", `{"items":[{"name":"물","quantity":3}]}`, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"data integrity", `{"items":[{"name":"감자칩","quantity":1}]}`, http.StatusInternalServerError, "DATA_INTEGRITY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/settlements", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, tc.code, decodeError(t, rr))
		})
	}
}

func TestPromotionQueryHandlers(t *testing.T) {
	engine, _, _ := newEngine(t,
		row{name: "콜라", price: 1000, qty: 10, promo: "탄산2+1"},
		row{name: "콜라", price: 1000, qty: 10},
	)
	srv := routes(settlement.NewHandler(engine))

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	rr := get("/api/v1/products/%EC%BD%9C%EB%9D%BC/top-up?quantity=2")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"extra":1,"available":true}}`, rr.Body.String())

	rr = get("/api/v1/products/%EC%BD%9C%EB%9D%BC/non-promotable?quantity=12")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"units":3}}`, rr.Body.String())

	rr = get("/api/v1/products/%EC%BD%9C%EB%9D%BC/free-count")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"free":1}}`, rr.Body.String())

	rr = get("/api/v1/products/%EC%BD%9C%EB%9D%BC/top-up?quantity=zero")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_REQUEST", decodeError(t, rr))
}
