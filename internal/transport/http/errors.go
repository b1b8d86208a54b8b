package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/VedalAI/swarm-control-sub000/internal/app"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

const (
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationFailed   = "validation_failed"
	codeSessionUnknown     = "session_unknown"
	codeVersionMismatch    = "config_version_mismatch"
	codeRedeemNotFound     = "redeem_not_found"
	codeRedeemDisabled     = "redeem_disabled"
	codeInvalidSKU         = "invalid_sku"
	codeSKUMismatch        = "sku_mismatch"
	codeInvalidToken       = "invalid_token"
	codeInvalidReceipt     = "invalid_receipt"
	codeReceiptExpired     = "receipt_expired"
	codeReceiptUsed        = "receipt_used"
	codeOrderNotFound      = "order_not_found"
	codeInvalidState       = "invalid_order_state"
	codeForbidden          = "forbidden"
	codeUserBanned         = "user_banned"
	codeGameUnavailable    = "game_unavailable"
	codeDeliveryPending    = "delivery_pending"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps service and domain errors onto HTTP statuses.
// Retryable conditions (game unavailable, delivery pending) map to 5xx so
// clients know the paid order is not lost and the call can be repeated.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, verr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrSessionUnknown):
		writeError(w, http.StatusBadRequest, codeSessionUnknown, err.Error())
	case errors.Is(err, domain.ErrVersionMismatch):
		writeError(w, http.StatusConflict, codeVersionMismatch, err.Error())
	case errors.Is(err, domain.ErrRedeemNotFound):
		writeError(w, http.StatusBadRequest, codeRedeemNotFound, err.Error())
	case errors.Is(err, domain.ErrRedeemDisabled):
		writeError(w, http.StatusBadRequest, codeRedeemDisabled, err.Error())
	case errors.Is(err, domain.ErrInvalidSKU):
		writeError(w, http.StatusBadRequest, codeInvalidSKU, err.Error())
	case errors.Is(err, domain.ErrSKUMismatch):
		writeError(w, http.StatusBadRequest, codeSKUMismatch, err.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, codeInvalidToken, err.Error())
	case errors.Is(err, domain.ErrInvalidReceipt):
		writeError(w, http.StatusUnauthorized, codeInvalidReceipt, err.Error())
	case errors.Is(err, domain.ErrReceiptExpired):
		writeError(w, http.StatusBadRequest, codeReceiptExpired, err.Error())
	case errors.Is(err, domain.ErrReceiptUsed):
		writeError(w, http.StatusConflict, codeReceiptUsed, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, codeInvalidState, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrUserBanned):
		writeError(w, http.StatusForbidden, codeUserBanned, err.Error())
	case errors.Is(err, app.ErrGameUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeGameUnavailable, err.Error())
	case errors.Is(err, app.ErrDeliveryPending):
		writeError(w, http.StatusGatewayTimeout, codeDeliveryPending, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
