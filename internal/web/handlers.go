package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxRunIDLength bounds client-supplied run ids to the ingest_runs column size.
const maxRunIDLength = 128

type startRunRequest struct {
	RunID string `json:"run_id"`
}

type startRunResponse struct {
	RunID  string         `json:"run_id"`
	Status core.RunStatus `json:"status"`
	Links  runLinks       `json:"links"`
}

type runLinks struct {
	Self   string `json:"self"`
	Events string `json:"events"`
}

// handleStartRun accepts a run and returns 202 with its id. The id comes from
// the JSON body or the run_id query parameter; without one a UUID is assigned.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, "invalid JSON body")
			return
		}
	}
	if req.RunID == "" {
		req.RunID = r.URL.Query().Get("run_id")
	}
	if len(req.RunID) > maxRunIDLength {
		badRequest(w, fmt.Sprintf("run_id longer than %d characters", maxRunIDLength))
		return
	}

	runID, err := s.service.StartRun(r.Context(), req.RunID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/runs/"+runID)
	writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID:  runID,
		Status: core.StatusRunning,
		Links: runLinks{
			Self:   "/api/runs/" + runID,
			Events: "/api/runs/" + runID + "/events",
		},
	})
}

type listRunsResponse struct {
	Active []core.RunResult `json:"active"`
	Recent []core.RunResult `json:"recent"`
}

// handleListRuns returns the runs executing now and the most recently
// recorded ones. ?limit bounds the recorded list.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recent, err := s.service.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recent == nil {
		recent = []core.RunResult{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{Active: s.service.ActiveRuns(), Recent: recent})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.CancelRun(runID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

// handleRunEvents streams run snapshots as server-sent events until the run
// reaches a terminal state or the client disconnects.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	res, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(s.eventInterval)
	defer ticker.Stop()

	for seq := 1; ; seq++ {
		data, _ := json.Marshal(res)
		event := "progress"
		if res.Status.IsTerminal() {
			event = "complete"
		}
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, data)
		flusher.Flush()

		if res.Status.IsTerminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if res, err = s.service.GetRun(r.Context(), runID); err != nil {
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", core.MapError(err).Message)
			flusher.Flush()
			return
		}
	}
}

func (s *Server) handleCountFoods(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.CountFoods(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleGetFood(w http.ResponseWriter, r *http.Request) {
	food, err := s.service.FindFood(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": len(s.service.ActiveRuns()),
		"busy":        s.service.Busy(),
	})
}
