package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/alertrule"
	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/repo"
	"github.com/hamed0406/webinspector/internal/results"
	"github.com/hamed0406/webinspector/internal/scheduler"
)

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Start(r.Context()); err != nil {
		s.Logger.Warn("start_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Stop(r.Context()); err != nil {
		s.Logger.Warn("stop_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Status())
}

type intervalPayload struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	var p intervalPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Engine.UpdateInterval(r.Context(), p.Minutes); err != nil {
		if errors.Is(err, scheduler.ErrInvalidInterval) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Status())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Trigger(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Results.List(r.Context())
	if err != nil {
		s.Logger.Warn("list_results_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if rs == nil {
		rs = []domain.RunResult{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleClearResults(w http.ResponseWriter, r *http.Request) {
	if err := s.Results.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear error")
		return
	}
	s.Logger.Info("results_cleared")
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	l, err := s.Checks.Checks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, nonNilChecks(l))
}

func (s *Server) handleUpsertNetwork(w http.ResponseWriter, r *http.Request) {
	var c domain.NetworkCheck
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if !isValidHTTPURL(c.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	c.URL = normalizeHTTPURL(c.URL)
	if c.AlertRule != "" {
		if _, err := alertrule.Compile(c.AlertRule); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	saved, err := s.Checks.UpsertNetworkCheck(r.Context(), c)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.Logger.Info("check_saved", zap.String("kind", "network"), zap.String("id", string(saved.ID)), zap.String("url", saved.URL))
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleUpsertPage(w http.ResponseWriter, r *http.Request) {
	var c domain.PageCheck
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if !isValidHTTPURL(c.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	c.URL = normalizeHTTPURL(c.URL)
	saved, err := s.Checks.UpsertPageCheck(r.Context(), c)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.Logger.Info("check_saved", zap.String("kind", "page"), zap.String("id", string(saved.ID)), zap.String("url", saved.URL))
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	kind := domain.Kind(chi.URLParam(r, "kind"))
	id := domain.CheckID(chi.URLParam(r, "id"))
	if err := s.Checks.DeleteCheck(r.Context(), kind, id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCheck):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.Logger.Warn("check_store_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store error")
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type settingsPayload struct {
	IntervalMinutes   *int  `json:"intervalMinutes"`
	AutoStartOnLaunch *bool `json:"autoStartOnLaunch"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var p settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.IntervalMinutes != nil {
		if err := s.Engine.UpdateInterval(r.Context(), *p.IntervalMinutes); err != nil {
			if errors.Is(err, scheduler.ErrInvalidInterval) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if p.AutoStartOnLaunch != nil {
		if err := s.Checks.SetAutoStart(r.Context(), *p.AutoStartOnLaunch); err != nil {
			writeError(w, http.StatusInternalServerError, "settings error")
			return
		}
	}
	s.handleGetSettings(w, r)
}

func (s *Server) settings(r *http.Request) (domain.Settings, error) {
	auto, err := s.Checks.AutoStart(r.Context())
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{
		IntervalMinutes:   s.Engine.Status().IntervalMinutes,
		AutoStartOnLaunch: auto,
	}, nil
}

type ReportConfig struct {
	Checks   domain.CheckList `json:"checks"`
	Settings domain.Settings  `json:"settings"`
}

type Report struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Summary     results.Summary    `json:"summary"`
	Results     []domain.RunResult `json:"results"`
	Config      *ReportConfig      `json:"config,omitempty"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Results.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if rs == nil {
		rs = []domain.RunResult{}
	}
	rep := Report{
		GeneratedAt: s.now().UTC(),
		Summary:     results.Summarize(rs),
		Results:     rs,
	}
	if include, _ := strconv.ParseBool(r.URL.Query().Get("include_config")); include {
		l, err := s.Checks.Checks(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list error")
			return
		}
		st, err := s.settings(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "settings error")
			return
		}
		rep.Config = &ReportConfig{Checks: nonNilChecks(l), Settings: st}
	}
	w.Header().Set("Content-Disposition", `attachment; filename="webinspector-report.json"`)
	writeJSON(w, http.StatusOK, rep)
}

type Diagnostics struct {
	GeneratedAt      time.Time         `json:"generatedAt"`
	Status           domain.RunState   `json:"status"`
	StoredResults    int               `json:"storedResults"`
	MaxResults       int               `json:"maxResults"`
	FailedResults    int               `json:"failedResults"`
	NetworkChecks    int               `json:"networkChecks"`
	PageChecks       int               `json:"pageChecks"`
	EventSubscribers int               `json:"eventSubscribers"`
	Backends         map[string]string `json:"backends,omitempty"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	d := Diagnostics{
		GeneratedAt: s.now().UTC(),
		Status:      s.Engine.Status(),
		MaxResults:  s.Results.Max(),
		Backends:    s.Backends,
	}
	rs, err := s.Results.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	sum := results.Summarize(rs)
	d.StoredResults, d.FailedResults = sum.Total, sum.Error

	l, err := s.Checks.Checks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	d.NetworkChecks, d.PageChecks = len(l.Network), len(l.Page)
	if s.Events != nil {
		d.EventSubscribers = s.Events.Subscribers()
	}
	writeJSON(w, http.StatusOK, d)
}

func nonNilChecks(l domain.CheckList) domain.CheckList {
	if l.Network == nil {
		l.Network = []domain.NetworkCheck{}
	}
	if l.Page == nil {
		l.Page = []domain.PageCheck{}
	}
	return l
}
