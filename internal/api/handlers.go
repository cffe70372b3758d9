package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"skyfeed/internal/types"
)

// maxIngestBodySize bounds ingest request bodies (64 KB; a full packet is
// well under 1 KB).
const maxIngestBodySize = 64 << 10

// ingestRequest is the JSON body accepted by POST /ingest.
type ingestRequest struct {
	DateTime int64               `json:"dateTime" validate:"required,gt=0"`
	Units    string              `json:"units" validate:"omitempty,oneof=us metric canonical"`
	Fields   map[string]*float64 `json:"fields" validate:"required,min=1"`
}

// handleIngest decodes and validates a packet, hands it to the publishing
// engine and returns 202. Submit never blocks, so a flooding station gets a
// fast accept and the queue's drop policy does the shedding.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		details := make(map[string]any)
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
			}
		}
		writeValidationError(w, details)
		return
	}

	units := types.UnitsCanonical
	switch req.Units {
	case "us":
		units = types.UnitsUS
	case "metric":
		units = types.UnitsMetric
	}

	s.publisher.Submit(types.Packet{
		Time:   req.DateTime,
		Units:  units,
		Fields: req.Fields,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRecord serves the latest published record verbatim, the same bytes
// the file sink writes. 404 until the first publish tick.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	latest := s.publisher.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no_record", "no record published yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Last-Modified", latest.Time.UTC().Format(http.TimeFormat))
	_, _ = io.WriteString(w, latest.Body+"\n")
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse summarizes pipeline counters for operators.
type statusResponse struct {
	Received    int64  `json:"received"`
	Dropped     int64  `json:"dropped"`
	Published   int64  `json:"published"`
	LastPublish string `json:"last_publish,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.publisher.Stats()
	resp := statusResponse{
		Received:  stats.Received,
		Dropped:   stats.Dropped,
		Published: stats.Published,
	}
	if !stats.LastPublish.IsZero() {
		resp.LastPublish = stats.LastPublish.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON reads the request body into dst, enforcing the size limit,
// strict field names, and exactly one JSON value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
