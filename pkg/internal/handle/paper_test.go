package handle_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/api"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/handle"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/internal/repository"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/internal/storage"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	"github.com/yeisme/papervault/pkg/internal/types"
	"github.com/yeisme/papervault/pkg/middleware"
)

type brokenStore struct{ blob.Store }

func (brokenStore) Upload(context.Context, []byte, string, string) (*blob.ObjectRef, error) {
	return nil, errors.New("bucket unreachable")
}

func newEngine(t *testing.T, store blob.Store, cfg configs.PaperConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewPaperService(service.Deps{
		Repo:   repository.NewMemory(),
		Blob:   store,
		Config: cfg,
	})

	e := gin.New()
	e.Use(
		middleware.RequestIDMiddleware(),
		middleware.StorageMiddleware(&storage.Manager{Blob: store}),
	)

	return api.RegisterRoutes(e, handle.NewPaperHandlers(svc), configs.ServerConfig{})
}

type upload struct {
	fields      map[string]string
	fileName    string
	contentType string
	data        []byte
}

func (u upload) request(t *testing.T) *http.Request {
	t.Helper()

	var body bytes.Buffer

	w := multipart.NewWriter(&body)
	for k, v := range u.fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if u.data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, u.fileName))
		h.Set("Content-Type", u.contentType)

		part, err := w.CreatePart(h)
		require.NoError(t, err)

		_, err = part.Write(u.data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func validUpload() upload {
	return upload{
		fields: map[string]string{
			"title":    "Deep Residual Learning",
			"authors":  "He, Zhang, Ren, Sun",
			"keywords": "vision, resnet",
			"year":     "2016",
		},
		fileName:    "resnet.pdf",
		contentType: model.MimeTypePDF,
		data:        bytes.Repeat([]byte("%PDF"), 256),
	}
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func get(e *gin.Engine, target string) *httptest.ResponseRecorder {
	return serve(e, httptest.NewRequest(http.MethodGet, target, nil))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func TestStatusFor(t *testing.T) {
	cases := map[errs.Category]int{
		errs.CategoryValidation: http.StatusBadRequest,
		errs.CategoryNotFound:   http.StatusNotFound,
		errs.CategoryStorage:    http.StatusBadGateway,
		errs.CategoryDatabase:   http.StatusInternalServerError,
		errs.CategoryInternal:   http.StatusInternalServerError,
	}

	for c, want := range cases {
		assert.Equal(t, want, handle.StatusFor(c), c)
	}
}

func TestPaperLifecycle(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	rec := serve(e, validUpload().request(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[types.UploadPaperResponse](t, rec)
	assert.Equal(t, "Paper uploaded successfully", created.Message)
	require.NotNil(t, created.Paper)
	assert.Equal(t, []string{"He", "Zhang", "Ren", "Sun"}, created.Paper.Authors)
	assert.Equal(t, "resnet.pdf", created.Paper.FileName)
	assert.EqualValues(t, 1024, created.Paper.FileSize)

	id := created.Paper.ID

	rec = get(e, "/api/v1/papers/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deep Residual Learning", decode[types.PaperResponse](t, rec).Paper.Title)

	rec = get(e, "/api/v1/papers?page=&limit=&sortBy=&sortOrder=")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[types.SearchResult](t, rec)
	assert.EqualValues(t, 1, list.Pagination.TotalCount)
	assert.Equal(t, 1, list.Pagination.Page)
	assert.Equal(t, 10, list.Pagination.Limit)
	assert.Nil(t, list.SearchInfo)

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/api/v1/papers/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paper deleted successfully", decode[types.MessageResponse](t, rec).Message)

	rec = get(e, "/api/v1/papers/"+id)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[types.ErrorResponse](t, rec)
	assert.Equal(t, "Paper not found", body.Error)
	assert.Equal(t, errs.CategoryNotFound, body.Code)

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/api/v1/papers/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadValidation(t *testing.T) {
	noFile := validUpload()
	noFile.data = nil

	noTitle := validUpload()
	delete(noTitle.fields, "title")

	textFile := validUpload()
	textFile.contentType = "text/plain"

	tooBig := validUpload()
	tooBig.data = make([]byte, 2048)

	cases := []struct {
		name    string
		in      upload
		message string
		details []errs.FieldError
	}{
		{
			name:    "missing file",
			in:      noFile,
			message: "File validation failed",
			details: []errs.FieldError{{Field: "file", Message: "File is required"}},
		},
		{
			name:    "missing title",
			in:      noTitle,
			message: "Validation failed",
			details: []errs.FieldError{{Field: "title", Message: "Title is required"}},
		},
		{
			name:    "not a pdf",
			in:      textFile,
			message: "File validation failed",
			details: []errs.FieldError{{Field: "file", Message: "Only PDF files are allowed"}},
		},
		{
			name:    "over the size limit",
			in:      tooBig,
			message: "File validation failed",
			details: []errs.FieldError{{Field: "file", Message: "File size must be less than 1024 bytes"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := blob.NewMemoryStore("http://cdn.local")
			e := newEngine(t, store, configs.PaperConfig{MaxFileSize: 1024})

			rec := serve(e, tc.in.request(t))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode[types.ErrorResponse](t, rec)
			assert.Equal(t, tc.message, body.Error)
			assert.Equal(t, errs.CategoryValidation, body.Code)
			assert.Equal(t, tc.details, body.Details)

			objects, err := store.List(context.Background(), store.Prefix())
			require.NoError(t, err)
			assert.Empty(t, objects)
		})
	}
}

func TestUploadOversizeBodyKeepsDeclaredContentType(t *testing.T) {
	const limit = 1024

	huge := make([]byte, limit+1<<20+10)

	cases := []struct {
		name        string
		contentType string
		details     []errs.FieldError
	}{
		{
			name:        "text file",
			contentType: "text/plain",
			details: []errs.FieldError{
				{Field: "file", Message: "File size must be less than 1024 bytes"},
				{Field: "file", Message: "Only PDF files are allowed"},
			},
		},
		{
			name:        "pdf",
			contentType: model.MimeTypePDF,
			details:     []errs.FieldError{{Field: "file", Message: "File size must be less than 1024 bytes"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := blob.NewMemoryStore("http://cdn.local")
			e := newEngine(t, store, configs.PaperConfig{MaxFileSize: limit})

			in := validUpload()
			in.contentType = tc.contentType
			in.data = huge

			rec := serve(e, in.request(t))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode[types.ErrorResponse](t, rec)
			assert.Equal(t, "File validation failed", body.Error)
			assert.Equal(t, tc.details, body.Details)

			objects, err := store.List(context.Background(), store.Prefix())
			require.NoError(t, err)
			assert.Empty(t, objects)
		})
	}
}

func TestUploadFieldsAfterFile(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	var body bytes.Buffer

	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="late.pdf"`)
	h.Set("Content-Type", model.MimeTypePDF)

	part, err := w.CreatePart(h)
	require.NoError(t, err)

	_, err = part.Write([]byte("%PDF-1.7"))
	require.NoError(t, err)

	require.NoError(t, w.WriteField("title", "Fields After File"))
	require.NoError(t, w.WriteField("authors", "Lovelace"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := serve(e, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[types.UploadPaperResponse](t, rec)
	assert.Equal(t, "Fields After File", got.Paper.Title)
	assert.Equal(t, "late.pdf", got.Paper.FileName)
	assert.EqualValues(t, 8, got.Paper.FileSize)
}

func TestUploadStorageFailure(t *testing.T) {
	e := newEngine(t, brokenStore{Store: blob.NewMemoryStore("http://cdn.local")}, configs.PaperConfig{})

	rec := serve(e, validUpload().request(t))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decode[types.ErrorResponse](t, rec)
	assert.Equal(t, "Failed to upload file to storage", body.Error)
	assert.Equal(t, errs.CategoryStorage, body.Code)
	assert.NotContains(t, rec.Body.String(), "bucket unreachable")

	rec = get(e, "/api/v1/papers")
	assert.EqualValues(t, 0, decode[types.SearchResult](t, rec).Pagination.TotalCount)
}

func TestSearchEndpoint(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})
	require.Equal(t, http.StatusCreated, serve(e, validUpload().request(t)).Code)

	rec := get(e, "/api/v1/papers/search?q=")
	require.Equal(t, http.StatusOK, rec.Code)

	empty := decode[map[string]any](t, rec)
	assert.Empty(t, empty["papers"])
	assert.NotContains(t, empty, "searchInfo")

	rec = get(e, "/api/v1/papers/search?q=resnet&field=keywords")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[types.SearchResult](t, rec)
	require.Len(t, res.Papers, 1)
	require.NotNil(t, res.SearchInfo)
	assert.Equal(t, "resnet", res.SearchInfo.Query)
	assert.Equal(t, model.ScopeKeywords, res.SearchInfo.Field)
	assert.EqualValues(t, 1, res.SearchInfo.ResultCount)

	rec = get(e, "/api/v1/papers/search?q=resnet&field=title")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[types.SearchResult](t, rec).Papers)

	rec = get(e, "/api/v1/papers/search?q=resnet&field=body")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRejectsBadParams(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	for _, q := range []string{"page=0", "limit=101", "sortBy=fileSize", "sortOrder=up", "page=abc"} {
		rec := get(e, "/api/v1/papers?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "Validation failed", decode[types.ErrorResponse](t, rec).Error, q)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	rec := get(e, "/api/v1/papers/not_an$id")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t,
		[]errs.FieldError{{Field: "id", Message: "Invalid paper ID format"}},
		decode[types.ErrorResponse](t, rec).Details,
	)
}

func TestHealthEndpoints(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	rec := get(e, "/api/v1/health/s3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[handle.HealthResponse](t, rec).Status)

	rec = get(e, "/api/v1/health/mq")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode[handle.HealthResponse](t, rec).Status)

	rec = get(e, "/api/v1/health/db")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[handle.HealthResponse](t, rec)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "db client not initialized", body.Error)
}

func TestSchedulerRoutesWithoutScheduler(t *testing.T) {
	e := newEngine(t, blob.NewMemoryStore("http://cdn.local"), configs.PaperConfig{})

	assert.Equal(t, http.StatusServiceUnavailable, get(e, "/api/v1/scheduler/jobs").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(e, httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/jobs/x/run", nil)).Code)
}
