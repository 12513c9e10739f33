package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	jobStreamInterval  = 1 * time.Second
	jobStreamKeepalive = 15 * time.Second
)

// handleJobStream pushes the job list as server-sent events whenever it
// changes, with a comment line as keepalive in between.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	lastWrite := time.Now()
	send := func() bool {
		payload, err := json.Marshal(s.queue.List())
		if err != nil {
			return false
		}
		if bytes.Equal(payload, last) {
			if time.Since(lastWrite) < jobStreamKeepalive {
				return true
			}
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return false
			}
		} else {
			if _, err := fmt.Fprintf(w, "event: jobs\ndata: %s\n\n", payload); err != nil {
				return false
			}
			last = payload
		}
		lastWrite = time.Now()
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(jobStreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
