package common_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/common"
)

func TestWriteErrorUsesAppErrorStatus(t *testing.T) {
	base := errors.New("insufficient stock")
	err := common.NewAppError("INSUFFICIENT_STOCK", "not enough cola", http.StatusConflict, base)
	require.ErrorIs(t, err, base)
	require.True(t, common.IsAppError(err))

	rr := httptest.NewRecorder()
	common.WriteError(rr, err)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":{"code":"INSUFFICIENT_STOCK","message":"not enough cola"}}`, rr.Body.String())
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "boom")
}
