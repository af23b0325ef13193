package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finsight/internal/analysis"
	"finsight/internal/config"
	"finsight/internal/store"
	"finsight/internal/upload"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successBody = `{
	"filename": "finances.csv",
	"detected_columns": {"revenue": "Revenue"},
	"kpis": {
		"revenus_totaux": 1000000,
		"ebitda": 200000,
		"resultat_net": 150000,
		"free_cash_flow": 180000,
		"marge_nette": 15
	},
	"data_preview": [{"Revenue": 1000}]
}`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

// newTestServer wires a Server to a fake collaborator. calls counts the
// requests that reached it.
func newTestServer(t *testing.T, status int, body string, calls *atomic.Int64) *Server {
	t.Helper()

	collaborator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(collaborator.Close)

	client := analysis.NewClient(collaborator.URL, 5*time.Second)
	service := upload.NewService(upload.NewMachine(), client, nil, 5*time.Second)
	return NewServer(service, nil, testConfig())
}

// multipartUpload builds a POST /upload request carrying one file part.
func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Partial", "true")
	return req
}

func TestHandleIndex_IdleShowsDropzone(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="dropzone"`)
	assert.NotContains(t, rec.Body.String(), "kpi-card")
}

func TestHandleUpload_RejectsNonCSV(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, http.StatusOK, successBody, &calls)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "data.txt", "not,a,csv"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Veuillez sélectionner un fichier CSV")
	assert.Contains(t, rec.Body.String(), `id="dropzone"`)
	assert.Equal(t, int64(0), calls.Load(), "no request may reach the collaborator for an invalid filename")
}

func TestHandleUpload_SuccessRendersDashboard(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, http.StatusOK, successBody, &calls)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "finances.csv", "Revenue\n1000\n"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "finances.csv")
	assert.Contains(t, body, "1 colonne(s)")
	assert.Contains(t, body, "Revenus totaux")
	assert.Contains(t, body, "15,0 %")
	assert.Contains(t, body, "Revenue")
	assert.Contains(t, body, "1000")
	assert.Equal(t, int64(1), calls.Load(), "exactly one request per submission")

	// The page now shows the dashboard too.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "kpi-card")
}

func TestHandleUpload_CollaboratorFailureShowsGenericError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `{"detail":"boom"}`, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "finances.csv", "Revenue\n1000\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Erreur lors de l&#39;analyse du fichier")
	assert.Contains(t, body, `id="dropzone"`, "upload view stays visible after a failure")
	assert.NotContains(t, body, "kpi-card")
}

func TestHandleUpload_NoFilePart(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpload_OversizeFragmentStaysHTML(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, http.StatusOK, successBody, &calls)

	// Twice the configured 1MB cap.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "big.csv", strings.Repeat("a", 2<<20)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html",
		"the page script swaps the response into the main region, so it must be HTML")
	body := rec.Body.String()
	assert.Contains(t, body, "Erreur lors de l&#39;analyse du fichier")
	assert.Contains(t, body, "VAL002")
	assert.Contains(t, body, `id="dropzone"`)
	assert.NotContains(t, body, `{"error"`)
	assert.Equal(t, int64(0), calls.Load())
}

func TestHandleUpload_NoFilePartFragment(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Partial", "true")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Veuillez sélectionner un fichier CSV")
}

func TestHandleUpload_NonScriptClientRedirects(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	req := multipartUpload(t, "finances.csv", "Revenue\n1000\n")
	req.Header.Del("X-Partial")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHandleReset_ReturnsToUploadView(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "finances.csv", "Revenue\n1000\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	req.Header.Set("X-Partial", "true")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="dropzone"`)
	assert.NotContains(t, rec.Body.String(), "kpi-card")
}

type stubHistory struct {
	recs []store.Record
}

func (h *stubHistory) List(ctx context.Context, limit int) ([]store.Record, error) {
	return h.recs, nil
}

func (h *stubHistory) Get(ctx context.Context, id uuid.UUID) (store.Record, error) {
	for _, rec := range h.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return store.Record{}, store.ErrNotFound
}

func TestHistoryAPI(t *testing.T) {
	rec1 := store.Record{
		ID:         uuid.New(),
		Filename:   "finances.csv",
		UploadedAt: time.Now().UTC(),
		KPIs:       analysis.KPISet{MargeNette: 15},
	}
	hist := &stubHistory{recs: []store.Record{rec1}}

	client := analysis.NewClient("http://analysis.invalid", time.Second)
	service := upload.NewService(upload.NewMachine(), client, nil, time.Second)
	srv := NewServer(service, hist, testConfig())

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "finances.csv")
	})

	t.Run("get known", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/"+rec1.ID.String(), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), rec1.ID.String())
	})

	t.Run("get unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/"+uuid.NewString(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHistoryAPI_Disabled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, successBody, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
