package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"valutatradehub/internal/cache"
	"valutatradehub/internal/fusion"
	"valutatradehub/internal/rates"
	"valutatradehub/internal/scheduler"
	"valutatradehub/internal/service"
)

// RateResponse represents one cached rate with its staleness flag.
type RateResponse struct {
	Code      string  `json:"code" example:"BTC"`
	Base      string  `json:"base" example:"USD"`
	Rate      float64 `json:"rate" example:"59337.21"`
	Source    string  `json:"source" example:"CoinGecko"`
	UpdatedAt string  `json:"updated_at" example:"2025-12-01T10:15:30Z"`
	Stale     bool    `json:"stale" example:"false"`
}

// RefreshResponse represents the outcome of a refresh.
type RefreshResponse struct {
	Updated       int      `json:"updated" example:"10"`
	Retained      int      `json:"retained" example:"2"`
	Partial       bool     `json:"partial" example:"false"`
	FailedSources []string `json:"failed_sources,omitempty" example:"CoinGecko"`
	RefreshedAt   string   `json:"refreshed_at" example:"2025-12-01T10:15:30Z"`
}

// StatusResponse represents the parser status.
type StatusResponse struct {
	Running       bool   `json:"running" example:"true"`
	LastRefreshAt string `json:"last_refresh_at,omitempty" example:"2025-12-01T10:15:30Z"`
	LastError     string `json:"last_error,omitempty" example:"all rate sources failed"`
}

// SchedulerResponse represents the result of a start/stop request.
type SchedulerResponse struct {
	Status string `json:"status" example:"running"`
}

// HistoryItemResponse represents one journal row.
type HistoryItemResponse struct {
	Code      string  `json:"code" example:"EUR"`
	Base      string  `json:"base" example:"USD"`
	Rate      float64 `json:"rate" example:"1.0786"`
	Source    string  `json:"source" example:"ExchangeRate-API"`
	FetchedAt string  `json:"fetched_at" example:"2025-12-01T10:15:30Z"`
}

// StartRequest is the body for starting auto-update.
type StartRequest struct {
	IntervalSec int `json:"interval_sec" example:"300"`
}

// HandleListRates godoc
// @Summary List cached rates
// @Description Returns all cached rates with per-entry staleness flags. Stale entries are included; callers decide whether to trigger a refresh.
// @Tags rates
// @Produce json
// @Param kind query string false "Filter by currency kind" Enums(fiat, crypto)
// @Success 200 {array} RateResponse
// @Failure 400 {object} ErrorResponse "Unknown kind filter"
// @Router /rates [get]
func HandleListRates(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := svc.ListRates(r.Context(), r.URL.Query().Get("kind"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		out := make([]RateResponse, 0, len(infos))
		for _, info := range infos {
			out = append(out, rateResponseFromInfo(info))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleGetRate godoc
// @Summary Get the cached rate for one currency
// @Description Returns the cached rate for a currency code. A stale entry is still returned, flagged as stale, rather than hidden.
// @Tags rates
// @Produce json
// @Param code path string true "Currency code" example(BTC)
// @Success 200 {object} RateResponse
// @Failure 400 {object} ErrorResponse "Invalid or unknown currency code"
// @Failure 404 {object} ErrorResponse "Code never fetched from any source"
// @Router /rates/{code} [get]
func HandleGetRate(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.GetRate(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			switch {
			case errors.Is(err, rates.ErrInvalidCode), errors.Is(err, rates.ErrUnknownCurrency):
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			case errors.Is(err, cache.ErrNotFound):
				writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}
		writeJSON(w, http.StatusOK, rateResponseFromInfo(*info))
	}
}

// HandleGetHistory godoc
// @Summary Get the fetch history for one currency
// @Description Returns the newest journal rows for a currency code, one row per fetched measurement.
// @Tags rates
// @Produce json
// @Param code path string true "Currency code" example(EUR)
// @Param limit query int false "Maximum rows returned" default(100)
// @Success 200 {array} HistoryItemResponse
// @Failure 400 {object} ErrorResponse "Invalid or unknown currency code"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /rates/{code}/history [get]
func HandleGetHistory(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err := svc.GetHistory(r.Context(), chi.URLParam(r, "code"), limit)
		if err != nil {
			switch {
			case errors.Is(err, rates.ErrInvalidCode), errors.Is(err, rates.ErrUnknownCurrency):
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}

		out := make([]HistoryItemResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, HistoryItemResponse{
				Code:      rec.Code,
				Base:      rec.Base,
				Rate:      rec.Rate,
				Source:    rec.Source,
				FetchedAt: rec.FetchedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleTriggerUpdate godoc
// @Summary Refresh rates now
// @Description Synchronously fetches from both providers and installs the merged table. A concurrent request joins the in-flight refresh and receives the same result. Returns 502 only when every source failed.
// @Tags parser
// @Produce json
// @Success 200 {object} RefreshResponse "Refresh completed (possibly partial)"
// @Failure 502 {object} ErrorResponse "All rate sources failed"
// @Router /parser/update [post]
func HandleTriggerUpdate(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.TriggerUpdate(r.Context())
		if err != nil {
			if errors.Is(err, fusion.ErrRefreshFailed) {
				writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}

		writeJSON(w, http.StatusOK, RefreshResponse{
			Updated:       res.Updated,
			Retained:      res.Retained,
			Partial:       res.Partial,
			FailedSources: res.FailedSources,
			RefreshedAt:   res.RefreshedAt.UTC().Format(time.RFC3339),
		})
	}
}

// HandleStartAutoUpdate godoc
// @Summary Start background auto-update
// @Description Begins periodic refreshes at the requested interval (or the configured default). Fails when the scheduler is already running; stop it first.
// @Tags parser
// @Accept json
// @Produce json
// @Param request body StartRequest false "Refresh interval; omit for the configured default"
// @Success 200 {object} SchedulerResponse
// @Failure 400 {object} ErrorResponse "Invalid interval"
// @Failure 409 {object} ErrorResponse "Scheduler already running"
// @Router /parser/start [post]
func HandleStartAutoUpdate(svc service.ParserServiceInterface, defaultInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interval := defaultInterval
		if r.Body != nil && r.ContentLength != 0 {
			var req StartRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
				return
			}
			if req.IntervalSec != 0 {
				interval = time.Duration(req.IntervalSec) * time.Second
			}
		}

		if err := svc.StartAutoUpdate(interval); err != nil {
			switch {
			case errors.Is(err, scheduler.ErrAlreadyRunning):
				writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
			case errors.Is(err, scheduler.ErrInvalidInterval):
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			}
			return
		}
		writeJSON(w, http.StatusOK, SchedulerResponse{Status: "running"})
	}
}

// HandleStopAutoUpdate godoc
// @Summary Stop background auto-update
// @Description Stops the schedule. A refresh already in flight completes; no new cycle is scheduled. Stopping an already stopped scheduler is a no-op.
// @Tags parser
// @Produce json
// @Success 200 {object} SchedulerResponse
// @Router /parser/stop [post]
func HandleStopAutoUpdate(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.StopAutoUpdate(); err != nil {
			if errors.Is(err, scheduler.ErrNotRunning) {
				writeJSON(w, http.StatusOK, SchedulerResponse{Status: "not_running"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}
		writeJSON(w, http.StatusOK, SchedulerResponse{Status: "stopped"})
	}
}

// HandleParserStatus godoc
// @Summary Parser status
// @Description Reports whether auto-update is running, the last refresh time, and the last refresh error if any.
// @Tags parser
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /parser/status [get]
func HandleParserStatus(svc service.ParserServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status()
		resp := StatusResponse{
			Running:   st.Running,
			LastError: st.LastError,
		}
		if !st.LastRefreshAt.IsZero() {
			resp.LastRefreshAt = st.LastRefreshAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rateResponseFromInfo(info service.RateInfo) RateResponse {
	return RateResponse{
		Code:      info.Code,
		Base:      info.Base,
		Rate:      info.Rate,
		Source:    info.Source,
		UpdatedAt: info.FetchedAt.UTC().Format(time.RFC3339),
		Stale:     info.Stale,
	}
}
