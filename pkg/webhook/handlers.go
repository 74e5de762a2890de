package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
)

type commitResponse struct {
	Outcome      services.CommitOutcome `json:"outcome"`
	FailedAlerts int                    `json:"failed_alerts"`
}

type decommitResponse struct {
	HadCommitment       bool `json:"had_commitment"`
	CoordinatorNotified bool `json:"coordinator_notified"`
	FailedAlerts        int  `json:"failed_alerts"`
}

type eventResponse struct {
	ID              string `json:"id"`
	EventTypeID     string `json:"event_type_id"`
	Date            string `json:"date"`
	TimeOfNeed      string `json:"time_of_need"`
	Duration        int    `json:"duration"`
	VolunteerCount  int    `json:"volunteer_count"`
	AffectedPersons int    `json:"affected_persons"`
	Location        string `json:"location"`
	Notes           string `json:"notes,omitempty"`
}

type checkResponse struct {
	Attempted    bool                     `json:"attempted"`
	Skipped      services.CheckSkipReason `json:"skipped,omitempty"`
	Alerted      int                      `json:"alerted"`
	FailedAlerts int                      `json:"failed_alerts"`
}

// respondByToken handles a link click. It always answers 200 with the same
// text so the reply reveals nothing about the token.
func (s *Server) respondByToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("uuid")
	action := r.URL.Query().Get("action")

	outcome, err := services.HandleResponse(r.Context(), s.store, s.notifier, s.clock, s.logger, token, action)
	if err != nil {
		s.logger.Error("Failed to handle response link", zap.String("action", action), zap.Error(err))
	} else if !outcome.Resolved {
		s.logger.Debug("Response link did not resolve", zap.String("action", action))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(services.GenericResponseMessage))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := services.RespondByUserAction(r.Context(), s.store, s.notifier, s.clock, s.logger, vars["volunteerID"], vars["eventID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, commitResponse{Outcome: result.Outcome, FailedAlerts: len(result.FailedAlerts)})
}

func (s *Server) decommit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := services.Decommit(r.Context(), s.store, s.notifier, s.clock, s.logger, vars["volunteerID"], vars["eventID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decommitResponse{
		HadCommitment:       result.HadCommitment,
		CoordinatorNotified: result.CoordinatorNotified,
		FailedAlerts:        len(result.FailedAlerts),
	})
}

func (s *Server) availableEvents(w http.ResponseWriter, r *http.Request) {
	events, err := services.AvailableEventsFor(r.Context(), s.store, s.logger, mux.Vars(r)["volunteerID"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	body := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		body = append(body, toEventResponse(ev))
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) checkEvent(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	result, err := services.CheckOneEvent(r.Context(), s.store, s.notifier, s.clock, s.settings, s.logger, mux.Vars(r)["eventID"], !force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, checkResponse{
		Attempted:    result.Attempted,
		Skipped:      result.Skipped,
		Alerted:      len(result.Alerted),
		FailedAlerts: len(result.FailedAlerts),
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var missing *services.MissingEntityError
	switch {
	case errors.As(err, &missing), db.IsNotFound(err):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		s.logger.Error("Request failed", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func toEventResponse(ev model.NeedEvent) eventResponse {
	return eventResponse{
		ID:              ev.ID,
		EventTypeID:     ev.EventTypeID,
		Date:            ev.Date.Format("2006-01-02"),
		TimeOfNeed:      model.FormatMinutes(ev.TimeOfNeed),
		Duration:        ev.Duration,
		VolunteerCount:  ev.VolunteerCount,
		AffectedPersons: ev.AffectedPersons,
		Location:        ev.Location,
		Notes:           ev.Notes,
	}
}
