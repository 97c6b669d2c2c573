package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
	"study-session-service/internal/export"
)

// RESTHandler serves the questionnaire catalog and the manual exports.
type RESTHandler struct {
	service *app.StudyService
	log     *zap.Logger
}

func NewRESTHandler(service *app.StudyService, log *zap.Logger) *RESTHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RESTHandler{service: service, log: log.Named("rest")}
}

// Register mounts the handler's routes on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /study/form", h.Form)
	mux.HandleFunc("GET /sessions/{id}/answers.csv", h.AnswersCSV)
	mux.HandleFunc("GET /sessions/{id}/export.json", h.ExportJSON)
}

type formPayload struct {
	Demographics       domain.DemographicOptions `json:"demographics"`
	MotivationItems    []domain.LikertItem       `json:"motivationItems"`
	LikertMin          int                       `json:"likertMin"`
	LikertMax          int                       `json:"likertMax"`
	TaskSeconds        int                       `json:"taskSeconds"`
	BreakSeconds       int                       `json:"breakSeconds"`
	DistractionSeconds int                       `json:"distractionSeconds"`
	RemoteOnline       bool                      `json:"remoteOnline"`
}

func (h *RESTHandler) Form(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.Config()
	writeJSON(w, http.StatusOK, formPayload{
		Demographics:       domain.DefaultDemographicOptions(),
		MotivationItems:    domain.MotivationItems(),
		LikertMin:          domain.LikertMin,
		LikertMax:          domain.LikertMax,
		TaskSeconds:        cfg.TaskSeconds,
		BreakSeconds:       cfg.BreakSeconds,
		DistractionSeconds: cfg.DistractionSeconds,
		RemoteOnline:       h.service.RemoteOnline(),
	})
}

func (h *RESTHandler) AnswersCSV(w http.ResponseWriter, r *http.Request) {
	dump, ok := h.dump(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+domain.AnswersCSVFilename(dump.ParticipantID)+`"`)
	_, _ = w.Write([]byte(export.AnswersCSV(dump.Answers)))
}

func (h *RESTHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	dump, ok := h.dump(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+domain.DumpFilename(dump.ParticipantID)+`"`)
	if err := export.WriteDump(w, dump); err != nil {
		h.log.Warn("write export", zap.String("participant_id", dump.ParticipantID), zap.Error(err))
	}
}

func (h *RESTHandler) dump(w http.ResponseWriter, r *http.Request) (domain.SessionDump, bool) {
	dump, err := h.service.Export(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		return dump, true
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrExportUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	return domain.SessionDump{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
