package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logsift/internal/aggregator"
	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/hub"
	"github.com/atikulmunna/logsift/internal/model"
	"github.com/atikulmunna/logsift/internal/store"
)

const sampleLog = "alice\t100\tALLOW\tNews\thttp://news.example\n" +
	"bob\t20000000\tALLOW\tSoftware\thttp://dl.example/iso\n" +
	"mallory\t50\tBLOCK\tPhishing\thttp://bad.example\n"

func newTestServer(t *testing.T, cfg Config) (*Server, *store.Store) {
	t.Helper()
	h := hub.New(nil, analyzer.New(), nil)
	st := store.New(10)
	agg := aggregator.New(h.Subscribe(), h.Dropped, st.Len)

	s, err := New(cfg, h, st, agg, nil)
	require.NoError(t, err)
	return s, st
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeAnalysis(t *testing.T, w *httptest.ResponseRecorder) model.Analysis {
	t.Helper()
	var an model.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &an))
	return an
}

// decodeReport reads a POST /api/analyze response: the bare report plus the
// id of the stored analysis.
func decodeReport(t *testing.T, w *httptest.ResponseRecorder) (model.Report, string) {
	t.Helper()
	var rep model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	return rep, w.Header().Get("X-Analysis-Id")
}

func uploadRequest(t *testing.T, url, filename, contentType, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNewRejectsUnknownProfile(t *testing.T) {
	_, err := New(Config{Profile: "squid"}, hub.New(nil, analyzer.New(), nil), store.New(1), nil, nil)
	assert.Error(t, err)
}

func TestAnalyzeEndpoint(t *testing.T) {
	s, st := newTestServer(t, Config{})

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(sampleLog)))
	require.Equal(t, http.StatusOK, w.Code)

	// The body is the flat report, not the stored analysis.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "totalRecords")
	assert.Contains(t, raw, "malformedCount")
	assert.Contains(t, raw, "anomalies")
	assert.NotContains(t, raw, "report")
	assert.NotContains(t, raw, "id")

	rep, id := decodeReport(t, w)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "/api/analysis/"+id, w.Header().Get("Location"))
	assert.Equal(t, 3, rep.TotalRecords)

	kinds := make([]string, 0, len(rep.Anomalies))
	for _, a := range rep.Anomalies {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []string{model.KindLargeDownload, model.KindBlockedRequest, model.KindHighRiskCategory}, kinds)
	assert.Equal(t, 1, st.Len())

	// stored and retrievable
	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	an := decodeAnalysis(t, w)
	assert.Equal(t, id, an.ID)
	assert.Equal(t, "generic", an.Profile)
	assert.Equal(t, rep, an.Report)

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+id+"/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var sum aggregator.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, aggregator.SeverityCounts{High: 1, Medium: 2}, sum.Severity)
}

func TestAnalyzeEmptyBody(t *testing.T) {
	s, st := newTestServer(t, Config{})

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Log content is empty"}`, w.Body.String())
	assert.Equal(t, 0, st.Len())
}

func TestAnalyzeGzipBody(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	var body bytes.Buffer
	gw := gzip.NewWriter(&body)
	_, err := gw.Write([]byte(sampleLog))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", &body))
	require.Equal(t, http.StatusOK, w.Code)
	rep, _ := decodeReport(t, w)
	assert.Equal(t, 3, rep.TotalRecords)
}

func TestAnalyzeTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxUploadBytes: 16})

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(sampleLog)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeProfileQuery(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze?profile=squid", strings.NewReader(sampleLog)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, httptest.NewRequest(http.MethodPost, "/api/analyze?profile=ZSCALER", strings.NewReader("#fields\n")))
	require.Equal(t, http.StatusOK, w.Code)
	rep, id := decodeReport(t, w)
	assert.Equal(t, 1, rep.HeaderLines)
	assert.NotNil(t, rep.Anomalies)

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zscaler", decodeAnalysis(t, w).Profile)
}

func TestGetAnalysisErrors(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Result not found"}`, w.Body.String())

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+uuid.NewString()+"/summary", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		contentType string
		content     string
		wantStatus  int
	}{
		{"text file", Config{}, "text/plain", sampleLog, http.StatusOK},
		{"text with charset", Config{}, "text/plain; charset=utf-8", sampleLog, http.StatusOK},
		{"wrong type", Config{}, "application/octet-stream", sampleLog, http.StatusUnsupportedMediaType},
		{"too large", Config{MaxUploadBytes: 16}, "text/plain", sampleLog, http.StatusRequestEntityTooLarge},
		{"empty file", Config{}, "text/plain", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.cfg)
			w := do(s, uploadRequest(t, "/api/logs/upload", "proxy.log", tt.contentType, tt.content))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				an := decodeAnalysis(t, w)
				assert.Equal(t, "proxy.log", an.Source)
				assert.Len(t, an.Report.Anomalies, 3)
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/logs/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := do(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded."}`, w.Body.String())
}

func TestClearEndpoint(t *testing.T) {
	s, st := newTestServer(t, Config{})

	w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(sampleLog)))
	require.Equal(t, http.StatusOK, w.Code)
	_, id := decodeReport(t, w)

	w = do(s, httptest.NewRequest(http.MethodDelete, "/api/analysis", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":1`)
	assert.Equal(t, 0, st.Len())

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentAndDelete(t *testing.T) {
	s, st := newTestServer(t, Config{})

	var ids []string
	for i := 0; i < 3; i++ {
		w := do(s, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(sampleLog)))
		require.Equal(t, http.StatusOK, w.Code)
		_, id := decodeReport(t, w)
		ids = append(ids, id)
	}

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/analysis?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Analyses []struct {
			ID        string `json:"id"`
			Anomalies int    `json:"anomalies"`
		} `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Analyses, 2)
	assert.Equal(t, ids[2], list.Analyses[0].ID)
	assert.Equal(t, ids[1], list.Analyses[1].ID)
	assert.Equal(t, 3, list.Analyses[0].Anomalies)

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/analysis?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, httptest.NewRequest(http.MethodDelete, "/api/analysis/"+ids[0], nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 2, st.Len())

	w = do(s, httptest.NewRequest(http.MethodDelete, "/api/analysis/"+ids[0], nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: 2})

	for i := 0; i < 2; i++ {
		w := do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// other clients and non-API routes are unaffected
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	assert.Equal(t, http.StatusOK, do(s, req).Code)
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	for _, path := range []string{"/healthz", "/api/stats", "/metrics", "/debug/pprof/"} {
		w := do(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWebSocketStream(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/api/analyze", "text/plain", strings.NewReader(sampleLog))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var an model.Analysis
	require.NoError(t, conn.ReadJSON(&an))
	assert.Equal(t, 3, an.Report.TotalRecords)
}

func TestWebSocketOrigin(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{"http://dashboard.example"}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	hdr = http.Header{"Origin": []string{"http://dashboard.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	conn.Close()
}
