package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/jobs"
)

type jobDetailResponse struct {
	Job      *jobs.CaptionJob  `json:"job"`
	Timeline *timelineResponse `json:"timeline,omitempty"`
}

type timelineResponse struct {
	Language string            `json:"language"`
	Dropped  int               `json:"dropped"`
	Captions int               `json:"captions"`
	Segments []caption.Segment `json:"segments"`
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID, ok := parseJobRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	job, ok := s.queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobDetailResponse{Job: job}
	if s.timelines != nil {
		rec, found, err := s.timelines.LoadTimeline(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if found {
			resp.Timeline = &timelineResponse{
				Language: rec.Language,
				Dropped:  rec.Dropped,
				Captions: countCaptions(rec.Segments),
				Segments: rec.Segments,
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseJobRoute extracts {id} from /api/jobs/{id}.
func parseJobRoute(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/api/jobs/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	if decoded, err := url.PathUnescape(rest); err == nil {
		rest = decoded
	}
	return rest, true
}

func countCaptions(segments []caption.Segment) int {
	n := 0
	for _, seg := range segments {
		if seg.IsCaption() {
			n++
		}
	}
	return n
}
