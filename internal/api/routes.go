package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/vidalign/internal/store"
	"github.com/forPelevin/vidalign/internal/types"
)

const defaultRunsLimit = 50

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/runs", listRunsHandler(cfg))
	r.Get("/runs/{id}", getRunHandler(cfg))
	r.Get("/runs/{id}/rows", listRowsHandler(cfg))
	r.Get("/runs/{id}/issues", listIssuesHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := cfg.Runs.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err, "failed to get run")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func listRowsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		videoID := r.URL.Query().Get("video_id")
		rows, err := cfg.Runs.ListRows(r.Context(), id, videoID)
		if err != nil {
			writeStoreError(w, err, "failed to list rows")
			return
		}
		if rows == nil {
			rows = []types.AlignedRow{}
		}
		WriteJSON(w, http.StatusOK, RowsResponse{RunID: id, VideoID: videoID, Rows: rows})
	}
}

func listIssuesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		issues, err := cfg.Runs.ListIssues(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "failed to list issues")
			return
		}
		if issues == nil {
			issues = []types.Issue{}
		}
		WriteJSON(w, http.StatusOK, IssuesResponse{RunID: id, Issues: issues})
	}
}

func writeStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
		return
	}
	WriteError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR")
}
