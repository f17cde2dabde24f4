package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/health"
)

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req domain.PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.clientError(w, "invalid request body", err)
		return
	}

	run, err := s.deps.Polls.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRecentPolls(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.clientError(w, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*domain.PollRun{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// extractRequest accepts the screenshot inline or by reference.
type extractRequest struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.clientError(w, "invalid request body", err)
		return
	}

	var screenshot []byte
	switch {
	case req.ImageBase64 != "":
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			s.clientError(w, "image_base64 is not valid base64", err)
			return
		}
		screenshot = data
	case req.ImageURL != "":
		batch := s.deps.Images.NewBatch()
		defer batch.Close()
		data, err := batch.Get(r.Context(), req.ImageURL)
		if err != nil {
			s.writeError(w, err)
			return
		}
		screenshot = data
	default:
		s.clientError(w, "image_base64 or image_url is required", nil)
		return
	}

	fields, err := s.deps.Extractor.Extract(r.Context(), screenshot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fields)
}

type bulkFetchRequest struct {
	ASINs []string `json:"asins"`
}

func (s *Server) handleBulkFetch(w http.ResponseWriter, r *http.Request) {
	var req bulkFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.clientError(w, "invalid request body", err)
		return
	}

	progress := func(done, total int, asin string, status domain.ItemStatus) {
		s.log.Debug("Bulk fetch progress", "done", done, "total", total, "asin", asin, "status", status)
	}
	result, err := s.deps.Fetcher.FetchAll(r.Context(), req.ASINs, progress)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Products.Get(r.Context(), r.PathValue("asin"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Monitor.Check(r.Context())

	status := http.StatusOK
	if report.SystemStatus == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Monitor.Check(r.Context()))
}
