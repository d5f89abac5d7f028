package server

import (
	"errors"
	"net/http"
	"time"

	"stemlab/core/job"
	"stemlab/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsPushInterval is how often job progress is pushed to a connected client.
const wsPushInterval = 500 * time.Millisecond

// WSStatusHandler streams job snapshots over a websocket instead of making
// the client poll. The last snapshot sent is always the terminal one, after
// which the connection closes.
func (h *APIHandler) WSStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	if _, err := h.jobs.Poll(jobID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	for {
		snap, err := h.jobs.Poll(jobID)
		if err != nil {
			// Cleaned up underneath us; nothing more to report.
			return
		}

		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		if snap.State.Terminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.State)))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
