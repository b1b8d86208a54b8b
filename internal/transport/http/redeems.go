package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/VedalAI/swarm-control-sub000/internal/app"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

const (
	userHeader    = "X-User-Id"
	sessionHeader = "X-Session-Id"
)

// Prepurchaser is the minimal interface needed to open an order.
type Prepurchaser interface {
	Prepurchase(ctx context.Context, in app.PrepurchaseInput) (app.PrepurchaseResult, error)
}

// Finalizer is the minimal interface needed to settle a paid order.
type Finalizer interface {
	Finalize(ctx context.Context, in app.FinalizeInput) (app.FinalizeResult, error)
}

// Canceller is the minimal interface needed to abort an unpaid order.
type Canceller interface {
	Cancel(ctx context.Context, in app.CancelInput) (domain.Order, error)
}

type prepurchaseRequest struct {
	RedeemID      string         `json:"redeem_id"`
	SKU           string         `json:"sku"`
	ConfigVersion int            `json:"config_version"`
	Args          map[string]any `json:"args"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Result    string    `json:"result,omitempty"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		State:     string(o.State),
		Result:    o.Result,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// HandlePrepurchase returns an HTTP handler that validates a cart and
// issues the transaction token.
func HandlePrepurchase(svc Prepurchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		sessionID := r.Header.Get(sessionHeader)
		if userID == "" || sessionID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-Id and X-Session-Id headers are required")
			return
		}

		var req prepurchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Prepurchase(r.Context(), app.PrepurchaseInput{
			UserID: userID,
			Cart: domain.Cart{
				RedeemID:      req.RedeemID,
				SKU:           req.SKU,
				ConfigVersion: req.ConfigVersion,
				SessionID:     sessionID,
				Args:          req.Args,
			},
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := toOrderResponse(res.Order)
		resp.Token = res.Token
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type finalizeRequest struct {
	Token   string `json:"token"`
	Receipt string `json:"receipt"`
}

type finalizeResponse struct {
	orderResponse
	Message string `json:"message,omitempty"`
}

// HandleFinalize returns an HTTP handler that captures payment for an
// order and dispatches the redeem. The transaction token names the order.
func HandleFinalize(svc Finalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		sessionID := r.Header.Get(sessionHeader)
		if userID == "" || sessionID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-Id and X-Session-Id headers are required")
			return
		}

		var req finalizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Token == "" || req.Receipt == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "token and receipt are required")
			return
		}

		res, err := svc.Finalize(r.Context(), app.FinalizeInput{
			UserID:    userID,
			SessionID: sessionID,
			Token:     req.Token,
			Receipt:   req.Receipt,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := finalizeResponse{orderResponse: toOrderResponse(res.Order), Message: res.Message}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleCancel returns an HTTP handler that aborts an unpaid order.
func HandleCancel(svc Canceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-Id header is required")
			return
		}
		orderID := mux.Vars(r)["id"]
		if orderID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "order id is required")
			return
		}

		order, err := svc.Cancel(r.Context(), app.CancelInput{
			UserID:  userID,
			OrderID: orderID,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toOrderResponse(order))
	}
}
