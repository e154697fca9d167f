package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/learning"
	"github.com/sells-group/geospark-cli/internal/store"
)

// EmailEventRequest is the body of POST /webhooks/email-events.
type EmailEventRequest struct {
	LeadID      string `json:"lead_id" validate:"required"`
	EmailNumber int    `json:"email_number" validate:"gte=1,lte=4"`
	Event       string `json:"event" validate:"required,oneof=sent opened replied"`
	Sentiment   string `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

// ConversionRequest is the body of POST /webhooks/conversions.
type ConversionRequest struct {
	LeadID         string `json:"lead_id" validate:"required"`
	ConversionType string `json:"conversion_type" validate:"required,max=64"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := store.ListRuns(r.Context(), s.store, limit)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := store.GetRun(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleEmailEvent(w http.ResponseWriter, r *http.Request) {
	var req EmailEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.tracker.TrackEmailEvent(r.Context(), req.LeadID, req.EmailNumber, req.Event, req.Sentiment); err != nil {
		s.fail(w, "track email event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	var req ConversionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.tracker.TrackConversion(r.Context(), req.LeadID, req.ConversionType); err != nil {
		s.fail(w, "track conversion", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("server: "+op, zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// HTTPStatus maps domain errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, learning.ErrUnknownEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
