package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	uploadService "github.com/zhouzirui/campus-widgets/backend/internal/service/upload"
)

func setupRouter(maxBytes int64) *chi.Mux {
	r := chi.NewRouter()
	New(uploadService.NewService(maxBytes, nil), persona.NewMemoryStore(persona.Seed()), nil).RegisterRoutes(r)
	return r
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("note", "作业"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doUpload(r http.Handler, personaID string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload/"+personaID, body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestUploadAcknowledged(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"作业1.pdf": "hello"})
	resp := doUpload(setupRouter(1024), "jiaohaoyun", body, ct)
	require.Equal(t, http.StatusOK, resp.Code)

	var receipt uploadService.Receipt
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &receipt))
	assert.Equal(t, "作业1.pdf", receipt.Filename)
	assert.EqualValues(t, 5, receipt.Size)
	assert.Equal(t, "文件\"作业1.pdf\"上传成功！在实际应用中，这里会将文件发送到服务器进行处理。", receipt.Message)
}

func TestUploadRequiresFile(t *testing.T) {
	body, ct := multipartBody(t, nil)
	resp := doUpload(setupRouter(1024), "jiaohaoyun", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUploadRejectsMultipleFiles(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	resp := doUpload(setupRouter(1024), "jiaohaoyun", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "only one file")
}

func TestUploadTooLarge(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"big.bin": "0123456789"})
	resp := doUpload(setupRouter(4), "jiaohaoyun", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestUploadDisabledForWidget(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"a.txt": "a"})
	resp := doUpload(setupRouter(1024), "xiaoke", body, ct)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestUploadNotMultipart(t *testing.T) {
	resp := doUpload(setupRouter(1024), "jiaohaoyun", bytes.NewBufferString("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
