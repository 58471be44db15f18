package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/copperexchange/controllers/internal/provider"
	"github.com/copperexchange/controllers/internal/tracker"
)

// RateTrackerService defines the tracker operations exposed over HTTP.
type RateTrackerService interface {
	State() tracker.ConversionState
	UpdateExchangeRate(ctx context.Context) error
	SetCurrentCurrency(ctx context.Context, currencyCode string) error
	SetNativeCurrency(ctx context.Context, symbol string) error
}

// SetCurrencyRequest represents the request body for a quote currency change
type SetCurrencyRequest struct {
	Currency string `json:"currency" example:"CAD"`
}

// SetNativeCurrencyRequest represents the request body for a native asset change
type SetNativeCurrencyRequest struct {
	NativeCurrency string `json:"nativeCurrency" example:"xDAI"`
}

// StateResponse represents the tracked conversion state
type StateResponse struct {
	ConversionDate         int64    `json:"conversionDate" example:"1700000000000"`
	ConversionRate         float64  `json:"conversionRate" example:"2942.17"`
	CurrentCurrency        string   `json:"currentCurrency" example:"usd"`
	NativeCurrency         string   `json:"nativeCurrency" example:"ETH"`
	PendingCurrentCurrency string   `json:"pendingCurrentCurrency,omitempty" example:"cad"`
	PendingNativeCurrency  string   `json:"pendingNativeCurrency,omitempty" example:"xDAI"`
	USDConversionRate      *float64 `json:"usdConversionRate,omitempty" example:"2942.17"`
}

func stateResponse(state tracker.ConversionState) StateResponse {
	return StateResponse{
		ConversionDate:         state.ConversionDate,
		ConversionRate:         state.ConversionRate,
		CurrentCurrency:        state.CurrentCurrency,
		NativeCurrency:         state.NativeCurrency,
		PendingCurrentCurrency: state.PendingCurrentCurrency,
		PendingNativeCurrency:  state.PendingNativeCurrency,
		USDConversionRate:      state.USDConversionRate,
	}
}

// HandleGetRate godoc
// @Summary Get the tracked conversion state
// @Description Returns the current conversion state: rate, fetch date, tracked pair, and any pending pair change.
// @Tags rate
// @Produce json
// @Success 200 {object} StateResponse "Current conversion state"
// @Router /rate [get]
func HandleGetRate(svc RateTrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stateResponse(svc.State()))
	}
}

// HandleRefreshRate godoc
// @Summary Trigger a manual exchange rate refresh
// @Description Performs one refresh attempt against the rate source and returns the committed state. Blocks until the fetch completes or fails.
// @Tags rate
// @Produce json
// @Success 200 {object} StateResponse "Refreshed conversion state"
// @Failure 502 {object} ErrorResponse "Rate source failed"
// @Router /rate/refresh [post]
func HandleRefreshRate(svc RateTrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UpdateExchangeRate(r.Context()); err != nil {
			writeRefreshError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(svc.State()))
	}
}

// HandleSetCurrency godoc
// @Summary Change the tracked quote currency
// @Description Records the requested currency as pending and performs one refresh attempt. On fetch failure the pending request is kept and retried by the next poll.
// @Tags rate
// @Accept json
// @Produce json
// @Param request body SetCurrencyRequest true "New quote currency code"
// @Success 200 {object} StateResponse "Currency change committed"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 502 {object} ErrorResponse "Rate source failed; change stays pending"
// @Router /rate/currency [put]
func HandleSetCurrency(svc RateTrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetCurrencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
			return
		}
		if strings.TrimSpace(req.Currency) == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "currency is required"})
			return
		}

		if err := svc.SetCurrentCurrency(r.Context(), req.Currency); err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(svc.State()))
	}
}

// HandleSetNativeCurrency godoc
// @Summary Change the tracked native asset
// @Description Records the requested asset as pending and performs one refresh attempt. On fetch failure the pending request is kept and retried by the next poll.
// @Tags rate
// @Accept json
// @Produce json
// @Param request body SetNativeCurrencyRequest true "New native asset symbol"
// @Success 200 {object} StateResponse "Asset change committed"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 502 {object} ErrorResponse "Rate source failed; change stays pending"
// @Router /rate/asset [put]
func HandleSetNativeCurrency(svc RateTrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetNativeCurrencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
			return
		}
		if strings.TrimSpace(req.NativeCurrency) == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "nativeCurrency is required"})
			return
		}

		if err := svc.SetNativeCurrency(r.Context(), req.NativeCurrency); err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(svc.State()))
	}
}

func writeMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, tracker.ErrEmptyCurrency) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeRefreshError(w, err)
}

func writeRefreshError(w http.ResponseWriter, err error) {
	if provider.IsFetchError(err) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
}
