package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"condolex-backend/metrics"
	"condolex-backend/models"
	"condolex-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	engine := gin.New()
	r.Register(engine)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, method, url, field string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type fakeAsker struct {
	result *service.AskResult
	err    error
	got    string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (*service.AskResult, error) {
	f.got = question
	return f.result, f.err
}

func TestAskQuestion(t *testing.T) {
	asker := &fakeAsker{result: &service.AskResult{Answer: "O síndico pode aplicar multa.", Sources: []models.RetrievedDocument{}}}
	r := &Router{Questions: NewQuestionHandler(asker, nil)}

	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"question":"Quem aplica multas?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Quem aplica multas?", asker.got)

	var result service.AskResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "O síndico pode aplicar multa.", result.Answer)
}

func TestAskQuestionErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"missing question", `{}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"blank question", `{"question":"  "}`, service.ErrEmptyQuestion, http.StatusBadRequest, "INVALID_REQUEST"},
		{"pipeline failure", `{"question":"x"}`, errors.New("gemini down"), http.StatusInternalServerError, "QUERY_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Router{Questions: NewQuestionHandler(&fakeAsker{err: tt.err}, nil)}
			req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve(r, req)

			assert.Equal(t, tt.wantCode, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

type fakeAnalyzer struct {
	started  []service.StartAnalysisRequest
	startErr error
	job      *models.AnalysisJob
	report   *models.DocumentAnalysisReport
	err      error
}

func (f *fakeAnalyzer) StartAnalysis(_ context.Context, req service.StartAnalysisRequest) (*service.StartAnalysisResult, error) {
	f.started = append(f.started, req)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &service.StartAnalysisResult{JobID: uuid.MustParse("6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f")}, nil
}

func (f *fakeAnalyzer) GetJobStatus(context.Context, uuid.UUID) (*models.AnalysisJob, error) {
	return f.job, f.err
}

func (f *fakeAnalyzer) GetReport(context.Context, uuid.UUID) (*models.DocumentAnalysisReport, string, error) {
	return f.report, "analise_convencao.json", f.err
}

func TestStartAnalysisAccepted(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	r := &Router{Analyses: NewAnalysisHandler(analyzer, nil)}

	w := serve(r, multipartRequest(t, http.MethodPost, "/api/analyses", "file", map[string]string{"convencao.txt": "Art. 1 É proibido ter animais."}))

	require.Equal(t, http.StatusAccepted, w.Code)
	env := decode(t, w)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f", data["job_id"])
	assert.Equal(t, "pending", data["status"])
	assert.Contains(t, data["message"], "/api/jobs/6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f")

	require.Len(t, analyzer.started, 1)
	assert.Equal(t, "convencao.txt", analyzer.started[0].Filename)
	assert.Equal(t, "Art. 1 É proibido ter animais.", string(analyzer.started[0].Data))
}

func TestStartAnalysisRejectsBadUploads(t *testing.T) {
	r := &Router{Analyses: NewAnalysisHandler(&fakeAnalyzer{}, nil)}
	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/analyses", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_FILE", decode(t, w).Error.Code)

	r = &Router{Analyses: NewAnalysisHandler(&fakeAnalyzer{startErr: service.ErrUnsupportedFileType}, nil)}
	w = serve(r, multipartRequest(t, http.MethodPost, "/api/analyses", "file", map[string]string{"foto.png": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FILE_TYPE", decode(t, w).Error.Code)

	handler := NewAnalysisHandler(&fakeAnalyzer{}, nil)
	handler.maxFileSize = 4
	w = serve(&Router{Analyses: handler}, multipartRequest(t, http.MethodPost, "/api/analyses", "file", map[string]string{"convencao.txt": "grande demais"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decode(t, w).Error.Code)
}

func TestReadUploadEnforcesLimitOnContent(t *testing.T) {
	req := multipartRequest(t, http.MethodPost, "/api/analyses", "file", map[string]string{"convencao.txt": "grande demais"})
	require.NoError(t, req.ParseMultipartForm(1<<20))
	fh := req.MultipartForm.File["file"][0]

	// a header that understates the size must not bypass the limit
	fh.Size = 1
	_, err := readUpload(fh, 4)
	assert.Error(t, err)

	data, err := readUpload(fh, 13)
	require.NoError(t, err)
	assert.Equal(t, "grande demais", string(data))
}

func TestGetJobStatus(t *testing.T) {
	id := uuid.New()
	analyzer := &fakeAnalyzer{job: &models.AnalysisJob{ID: id, DocumentName: "convencao.txt", Status: models.JobStatusInProgress}}
	r := &Router{Analyses: NewAnalysisHandler(analyzer, nil)}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var job models.AnalysisJob
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))
	assert.Equal(t, models.JobStatusInProgress, job.Status)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	analyzer.err = service.ErrJobNotFound
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode(t, w).Error.Code)
}

func TestDownloadReport(t *testing.T) {
	id := uuid.New()
	analyzer := &fakeAnalyzer{report: &models.DocumentAnalysisReport{DocumentName: "convencao.txt", TotalClausesAnalyzed: 2}}
	r := &Router{Analyses: NewAnalysisHandler(analyzer, nil)}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String()+"/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="analise_convencao.json"`, w.Header().Get("Content-Disposition"))

	var report models.DocumentAnalysisReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalClausesAnalyzed)

	analyzer.err = service.ErrReportNotReady
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String()+"/report", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

type fakeInternalDocs struct {
	names    []string
	uploaded []service.UploadedFile
	cleared  bool
	err      error
}

func (f *fakeInternalDocs) Upload(_ context.Context, files []service.UploadedFile) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.uploaded = append(f.uploaded, files...)
	f.names = nil
	for _, file := range files {
		f.names = append(f.names, file.Filename)
	}
	return len(files), nil
}

func (f *fakeInternalDocs) Names() []string { return f.names }

func (f *fakeInternalDocs) Clear(context.Context) error {
	f.cleared = true
	f.names = nil
	return f.err
}

func adminHash(t *testing.T, token string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRequireAdminToken(t *testing.T) {
	hash := adminHash(t, "segredo")
	tests := []struct {
		name     string
		hash     string
		header   string
		value    string
		wantCode int
	}{
		{"not configured", "", AdminTokenHeader, "segredo", http.StatusServiceUnavailable},
		{"missing token", hash, "", "", http.StatusUnauthorized},
		{"wrong token", hash, AdminTokenHeader, "errado", http.StatusForbidden},
		{"admin header", hash, AdminTokenHeader, "segredo", http.StatusOK},
		{"bearer token", hash, "Authorization", "Bearer segredo", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Router{InternalDocs: NewInternalDocsHandler(&fakeInternalDocs{}, nil), AdminTokenHash: tt.hash}
			req := httptest.NewRequest(http.MethodDelete, "/api/internal-documents", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := serve(r, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestInternalDocsUploadAndList(t *testing.T) {
	docs := &fakeInternalDocs{}
	r := &Router{InternalDocs: NewInternalDocsHandler(docs, nil), AdminTokenHash: adminHash(t, "segredo")}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/internal-documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":null,"configured":false}`, string(decode(t, w).Data))

	req := multipartRequest(t, http.MethodPost, "/api/internal-documents", "files", map[string]string{"regimento.txt": "Art. 1 Silêncio."})
	req.Header.Set(AdminTokenHeader, "segredo")
	w = serve(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"indexed":1,"documents":["regimento.txt"]}`, string(decode(t, w).Data))
	require.Len(t, docs.uploaded, 1)
	assert.Equal(t, "Art. 1 Silêncio.", string(docs.uploaded[0].Data))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/internal-documents", nil))
	assert.JSONEq(t, `{"documents":["regimento.txt"],"configured":true}`, string(decode(t, w).Data))

	docs.err = service.ErrNoDocumentsIndexed
	req = multipartRequest(t, http.MethodPost, "/api/internal-documents", "files", map[string]string{"vazio.txt": " "})
	req.Header.Set(AdminTokenHeader, "segredo")
	w = serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_CONTENT", decode(t, w).Error.Code)
}

type fakeDrafter struct {
	text string
	err  error
	req  service.WriteRequest
}

func (f *fakeDrafter) DocumentFields(_ context.Context, docType models.DocumentType, name, _ string) []models.DocumentField {
	return []models.DocumentField{{FieldID: "nome_condominio", Label: name, FieldType: "text", Required: true}}
}

func (f *fakeDrafter) WriteDocument(_ context.Context, req service.WriteRequest) (string, error) {
	f.req = req
	return f.text, f.err
}

func TestGetFields(t *testing.T) {
	r := &Router{Drafting: NewDraftingHandler(&fakeDrafter{}, nil)}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/documents/fields", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/documents/fields?document_type=advertencia", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		DocumentName string                 `json:"document_name"`
		Fields       []models.DocumentField `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, models.DocWarning.DisplayName(), data.DocumentName)
	require.Len(t, data.Fields, 1)
	assert.Equal(t, "nome_condominio", data.Fields[0].FieldID)
}

func TestWriteDocument(t *testing.T) {
	draft := "**NOTIFICAÇÃO DE BARULHO**\n\nPrezado condômino, solicitamos silêncio após as 22h."
	drafter := &fakeDrafter{text: draft}
	r := &Router{Drafting: NewDraftingHandler(drafter, nil)}

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req)
	}

	w := post(`{"document_type":"notificacao_barulho","field_values":{"unidade":"101"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var data map[string]string
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, draft, data["content"])
	assert.Equal(t, "101", drafter.req.FieldValues["unidade"])
	assert.Equal(t, models.DocNoiseNotice.DisplayName(), drafter.req.DocumentName)

	w = post(`{"document_type":"notificacao_barulho","format":"txt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".txt")
	assert.NotContains(t, w.Body.String(), "**")

	w = post(`{"document_type":"notificacao_barulho","format":"pdf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decode(t, w).Error.Code)

	w = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "NOTIFICAÇÃO_DE_BARULHO", downloadName("NOTIFICAÇÃO DE BARULHO"))
	assert.Equal(t, "documento", downloadName("***"))
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := &Router{Metrics: metrics.New(reg)}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	count, err := testutil.GatherAndCount(reg, "condolex_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
