package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"finsight/internal/analysis"
	"finsight/internal/logging"
	"finsight/internal/store"
	"finsight/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Support codes for requests rejected before a submission starts.
const (
	codeRequestTooLarge = "VAL002"
	codeNoFile          = "VAL003"
)

// handleIndex renders the page for the machine's current state: the upload
// view, the loading view, or the dashboard.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, viewFor(s.service.Machine().Snapshot())); err != nil {
		slog.Error("render page", "error", err)
	}
}

// handleUpload accepts the dropped or picked file and submits it for
// analysis. Only the first file part named "file" is considered. The
// response is the main-region fragment reflecting the outcome, or a
// redirect back to the page for non-script clients.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondUploadError(w, r, "file too large or invalid form",
			analysis.UserMessage{Message: analysis.MsgUploadFailed, Code: codeRequestTooLarge})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondUploadError(w, r, "no file provided",
			analysis.UserMessage{Message: analysis.MsgNotCSV, Code: codeNoFile})
		return
	}
	defer file.Close()

	snap, err := s.service.Submit(r.Context(), header.Filename, file)
	if err != nil {
		// A submission is already in flight (or a result is on screen);
		// report the conflict and re-render whatever is current.
		logging.FromContext(r.Context()).Warn("submission rejected", "error", err)
		s.respondView(w, r, snap, http.StatusConflict)
		return
	}

	s.respondView(w, r, snap, http.StatusOK)
}

// handleReset is the "new file" action: back to the upload view with result
// and error cleared, cancelling any in-flight submission.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.service.Reset()
	s.respondView(w, r, s.service.Machine().Snapshot(), http.StatusOK)
}

// respondUploadError reports a failure rejected before any submission began.
// The page script swaps whatever comes back into the main region, so script
// requests get the upload view with the error line rather than JSON; JSON is
// reserved for API callers.
func (s *Server) respondUploadError(w http.ResponseWriter, r *http.Request, apiMessage string, msg analysis.UserMessage) {
	if !isPartial(r) {
		writeError(w, http.StatusBadRequest, apiMessage)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	view := pageView{Upload: &uploadView{Error: msg.Message, ErrorCode: msg.Code}}
	if err := renderMain(w, view); err != nil {
		slog.Error("render fragment", "error", err)
	}
}

// respondView renders the main-region fragment for script requests and
// redirects everything else back to the page.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, snap upload.Snapshot, status int) {
	if !isPartial(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := renderMain(w, viewFor(snap)); err != nil {
		slog.Error("render fragment", "error", err)
	}
}

// handleListAnalyses returns stored analyses, newest first.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	recs, err := s.history.List(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list analyses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, recs)
}

// handleGetAnalysis returns one stored analysis by id.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	rec, err := s.history.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("get analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	writeJSON(w, rec)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
