package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/problems"
	"github.com/openfroyo/scorekeeper/pkg/service"
	"github.com/openfroyo/scorekeeper/pkg/stores"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type problemInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error      string         `json:"error"`
	Class      string         `json:"class,omitempty"`
	Code       string         `json:"code,omitempty"`
	Constraint string         `json:"constraint,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProblems(w http.ResponseWriter, _ *http.Request) {
	all := problems.All()
	out := make([]problemInfo, len(all))
	for i, p := range all {
		out[i] = problemInfo{Name: p.Name, Description: p.Description}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listConstraints(w http.ResponseWriter, r *http.Request) {
	descriptors, err := s.svc.Constraints(r.Context(), mux.Vars(r)["problem"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, descriptors)
}

// score scores the dataset in the request body. A pass in which some
// constraints failed still answers 200; the report lists the failures.
func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	explain, err := boolQuery(r, "explain")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ctx := service.WithSource(r.Context(), "http:"+r.RemoteAddr)
	report, err := s.svc.Score(ctx, mux.Vars(r)["problem"], body, explain)
	if err != nil && report == nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// verify answers 200 with the verdict whether or not the expectation held.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	verdict, err := s.svc.Verify(r.Context(), vars["problem"], vars["constraint"], body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

// listPasses lists recorded passes, filtered by ?problem=, ?feasible= and
// ?limit=.
func (s *Server) listPasses(w http.ResponseWriter, r *http.Request) {
	feasible, err := boolQuery(r, "feasible")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxHistoryLimit {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query parameter limit must be between 1 and 500"})
			return
		}
	}

	filter := stores.PassFilter{Problem: r.URL.Query().Get("problem"), FeasibleOnly: feasible}
	passes, err := s.svc.Passes(r.Context(), filter, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, passes)
}

func (s *Server) getPass(w http.ResponseWriter, r *http.Request) {
	pass, err := s.svc.Pass(r.Context(), mux.Vars(r)["pass"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pass)
}

func boolQuery(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("query parameter " + name + " must be a boolean")
	}
	return b, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return nil, false
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return nil, false
	}
	return body, true
}

// statusOf maps an engine error onto an HTTP status.
func statusOf(err error) int {
	if errors.Is(err, service.ErrHistoryDisabled) {
		return http.StatusNotFound
	}
	var engErr *engine.EngineError
	if !errors.As(err, &engErr) {
		return http.StatusInternalServerError
	}
	switch {
	case engErr.Code == engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engErr.Code == engine.ErrCodePolicyViolation:
		return http.StatusUnprocessableEntity
	case engErr.Class == engine.ErrorClassConfiguration, engErr.Class == engine.ErrorClassVerification:
		return http.StatusBadRequest
	case engErr.Class == engine.ErrorClassState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}

	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		resp.Class = string(engErr.Class)
		resp.Code = engErr.Code
		resp.Constraint = engErr.Constraint
		resp.Details = engErr.Details
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
