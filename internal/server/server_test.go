package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/reception/internal/api/handlers"
	"github.com/bigkaa/reception/internal/classify"
	"github.com/bigkaa/reception/internal/config"
	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/ocr"
	"github.com/bigkaa/reception/internal/ratelimit"
	"github.com/bigkaa/reception/internal/service"
	"github.com/bigkaa/reception/internal/storage/filestore"
)

// textExtractor возвращает содержимое файла как распознанный текст.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte, _ string) string {
	return string(data)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	router    http.Handler
	uploadDir string
}

type envOptions struct {
	rateLimit      int
	maxRequestSize int64
	webDir         string
}

func setupServer(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := testLogger()

	cfg := &config.Config{
		UploadDir:          filepath.Join(t.TempDir(), "uploads"),
		TempDir:            t.TempDir(),
		WebDir:             opts.webDir,
		MaxFileSize:        1 << 20,
		MaxRequestSize:     opts.maxRequestSize,
		MaxFilesPerRequest: 5,
		RateLimit:          opts.rateLimit,
		RateWindow:         time.Minute,
	}

	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	classifier, err := classify.New(classify.DefaultKeywords, classify.DefaultCacheSize, logger)
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	pool := ocr.NewPool(2)
	t.Cleanup(pool.Close)

	pipeline := service.NewPipeline(textExtractor{}, classifier, store, pool, logger)
	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow, logger)
	ingest := service.NewIngestService(pipeline, limiter, service.IngestOptions{
		MaxFileSize:        cfg.MaxFileSize,
		MaxFilesPerRequest: cfg.MaxFilesPerRequest,
		TempDir:            cfg.TempDir,
	}, logger)
	documents := service.NewDocumentService(store, logger)

	h := handlers.NewAPIHandler(ingest, documents, cfg.UploadDir, cfg.MaxRequestSize, logger)
	return &testEnv{
		router:    NewRouter(cfg, logger, h),
		uploadDir: cfg.UploadDir,
	}
}

type uploadFile struct {
	name        string
	contentType string
	content     string
}

// uploadRequest формирует multipart-запрос POST /upload.
func uploadRequest(t *testing.T, first, last string, files ...uploadFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if first != "" {
		_ = mw.WriteField("name", first)
	}
	if last != "" {
		_ = mw.WriteField("lastname", last)
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = part.Write([]byte(f.content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// errorCode извлекает код из JSON-конверта ошибки.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не является JSON-ошибкой: %v, body=%s", err, rec.Body.String())
	}
	return resp.Error.Code
}

func ownerQuery(path, first, last string) string {
	q := url.Values{}
	q.Set("name", first)
	q.Set("lastname", last)
	return path + "?" + q.Encode()
}

func TestUploadAndDocumentLifecycle(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(uploadRequest(t, "Иван", "Петров",
		uploadFile{"diplom.pdf", "application/pdf", "Диплом бакалавра"},
		uploadFile{"photo.png", "image/png", "просто фотография"},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /upload: %d, body=%s", rec.Code, rec.Body.String())
	}

	var results []model.ProcessedFile
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("ответ /upload: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("результатов %d, ожидалось 2", len(results))
	}

	var saved model.ProcessedFile
	for _, r := range results {
		if r.Status == model.StatusSaved {
			saved = r
		}
	}
	if saved.Category != model.CategoryDiplom || saved.NewName == "" {
		t.Fatalf("сохранённый документ: %+v", saved)
	}

	// Список документов владельца
	rec = env.do(httptest.NewRequest(http.MethodGet, ownerQuery("/documents", "Иван", "Петров"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /documents: %d", rec.Code)
	}
	var list struct {
		Documents []model.StoredDocument `json:"documents"`
		Total     int                    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("ответ /documents: %v", err)
	}
	if list.Total != 1 || list.Documents[0].ID != saved.ID {
		t.Fatalf("список документов: %+v", list)
	}

	// Скачивание по id
	rec = env.do(httptest.NewRequest(http.MethodGet, "/documents/"+saved.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /documents/{id}: %d", rec.Code)
	}
	if rec.Body.String() != "Диплом бакалавра" {
		t.Errorf("содержимое: %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// Скачивание по имени файла
	rec = env.do(httptest.NewRequest(http.MethodGet, "/files/"+url.PathEscape(saved.NewName), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /files/{filename}: %d", rec.Code)
	}

	// ZIP-архив владельца
	rec = env.do(httptest.NewRequest(http.MethodGet, ownerQuery("/download_zip", "Иван", "Петров"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /download_zip: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("архив не читается: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != saved.NewName {
		t.Errorf("содержимое архива: %v", zr.File)
	}

	// Удаление по имени файла
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/delete_file?filename="+url.QueryEscape(saved.NewName), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /delete_file: %d", rec.Code)
	}
	var del struct {
		Status   string `json:"status"`
		Filename string `json:"filename"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &del)
	if del.Status != "deleted" || del.Filename != saved.NewName {
		t.Errorf("ответ удаления: %+v", del)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/documents/"+saved.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторное удаление: %d, ожидался 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("код ошибки %s", code)
	}
}

func TestDocumentMetadata(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(uploadRequest(t, "Иван", "Петров",
		uploadFile{"diplom.pdf", "application/pdf", "Диплом магистра"},
	))
	var results []model.ProcessedFile
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil || len(results) != 1 {
		t.Fatalf("POST /upload: %d, body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/documents/"+results[0].ID+"/metadata", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /documents/{id}/metadata: %d, body=%s", rec.Code, rec.Body.String())
	}
	var doc model.StoredDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("ответ metadata: %v", err)
	}
	if doc.ID != results[0].ID || doc.Filename != results[0].NewName || doc.Category != model.CategoryDiplom {
		t.Errorf("метаданные: %+v", doc)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/documents/00000000-0000-4000-8000-000000000000/metadata", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("несуществующий id: %d, ожидался 404", rec.Code)
	}

	for _, path := range []string{"/documents/not-a-uuid", "/documents/not-a-uuid/metadata"} {
		rec = env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: %d, ожидался 400", path, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
			t.Errorf("GET %s: код %s", path, code)
		}
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /openapi.json: %d", rec.Code)
	}
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("ответ /openapi.json: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	for _, path := range []string{"/upload", "/documents/{id}", "/download_zip"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("путь %s отсутствует", path)
		}
	}
}

func TestDeleteDocumentByID(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(uploadRequest(t, "Анна", "Смирнова",
		uploadFile{"ent.jpg", "image/jpeg", "Сертификат тестирования"},
	))
	var results []model.ProcessedFile
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil || len(results) != 1 {
		t.Fatalf("POST /upload: %d, body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/documents/"+results[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /documents/{id}: %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(env.uploadDir, results[0].NewName)); !os.IsNotExist(err) {
		t.Error("файл не удалён с диска")
	}
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		opts       envOptions
		first      string
		last       string
		files      []uploadFile
		wantStatus int
		wantCode   string
	}{
		{
			name:       "нет имени",
			opts:       envOptions{rateLimit: 10},
			last:       "Петров",
			files:      []uploadFile{{"a.pdf", "application/pdf", "диплом"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "нет допустимых файлов",
			opts:       envOptions{rateLimit: 10},
			first:      "Иван",
			last:       "Петров",
			files:      []uploadFile{{"a.exe", "application/octet-stream", "MZ"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_VALID_FILES",
		},
		{
			name:       "запрос больше лимита",
			opts:       envOptions{rateLimit: 10, maxRequestSize: 512},
			first:      "Иван",
			last:       "Петров",
			files:      []uploadFile{{"a.pdf", "application/pdf", strings.Repeat("x", 4096)}},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t, tt.opts)
			rec := env.do(uploadRequest(t, tt.first, tt.last, tt.files...))
			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидался %d, body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("код %s, ожидался %s", code, tt.wantCode)
			}
		})
	}
}

// countingBody считает байты, прочитанные обработчиком из тела запроса.
type countingBody struct {
	r    io.Reader
	read int
}

func (c *countingBody) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestUploadRateLimited(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 1})

	file := uploadFile{"a.pdf", "application/pdf", "диплом"}
	if rec := env.do(uploadRequest(t, "Иван", "Петров", file)); rec.Code != http.StatusOK {
		t.Fatalf("первый запрос: %d", rec.Code)
	}

	req := uploadRequest(t, "Иван", "Петров", file)
	body := &countingBody{r: req.Body}
	req.Body = io.NopCloser(body)

	rec := env.do(req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("второй запрос: %d, ожидался 429", rec.Code)
	}
	if code := errorCode(t, rec); code != "RATE_LIMITED" {
		t.Errorf("код %s", code)
	}
	if body.read != 0 {
		t.Errorf("прочитано %d байт тела отклонённого запроса", body.read)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/files/..%2F..%2Fetc%2Fpasswd", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("GET /files/..: %d, ожидался 403", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/delete_file?filename="+url.QueryEscape("../config.yaml"), nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("DELETE /delete_file ../: %d, ожидался 403", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/delete_file", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("DELETE /delete_file без filename: %d, ожидался 400", rec.Code)
	}
}

func TestDownloadZipValidation(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/download_zip?name=Ivan", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без lastname: %d, ожидался 400", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, ownerQuery("/download_zip", "Нет", "Такого"), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("нет документов: %d, ожидался 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: %d", rec.Code)
	}
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Status != "healthy" || health.Version != config.Version {
		t.Errorf("health: %+v", health)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health/ready: %d", rec.Code)
	}

	if err := os.RemoveAll(env.uploadDir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health/ready без хранилища: %d, ожидался 503", rec.Code)
	}
}

func TestInfoAndMetrics(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	env.do(uploadRequest(t, "Иван", "Петров", uploadFile{"a.pdf", "application/pdf", "диплом"}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /info: %d", rec.Code)
	}
	var info struct {
		Documents int `json:"documents"`
		Disk      *struct {
			TotalBytes int64 `json:"total_bytes"`
		} `json:"disk"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("ответ /info: %v", err)
	}
	if info.Documents != 1 {
		t.Errorf("documents = %d, ожидался 1", info.Documents)
	}
	if info.Disk == nil || info.Disk.TotalBytes <= 0 {
		t.Errorf("нет сведений о диске: %s", rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"rc_http_requests_total", "rc_pipeline_files_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("метрика %s отсутствует", name)
		}
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.org")
	rec := env.do(req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestStaticWebDir(t *testing.T) {
	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<h1>Приём документов</h1>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	env := setupServer(t, envOptions{rateLimit: 10, webDir: webDir})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Приём документов") {
		t.Errorf("GET /: %d, body=%s", rec.Code, rec.Body.String())
	}

	// API-маршруты имеют приоритет над статикой
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("GET /health: %d", rec.Code)
	}
}

func TestStaticMissingWebDir(t *testing.T) {
	env := setupServer(t, envOptions{rateLimit: 10, webDir: filepath.Join(t.TempDir(), "absent")})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/index.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /index.html без WebDir: %d, ожидался 404", rec.Code)
	}
}
