package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salescope/config"
	"github.com/YuminosukeSato/salescope/pipeline"
)

func salesCSV(withTarget bool) string {
	names := []string{"The Hawaiian Pizza", "The Big Meat Pizza", "The Five Cheese Pizza"}
	prices := []float64{13.25, 12, 18.5}
	var b strings.Builder
	b.WriteString("pizza_name,pizza_size,quantity,unit_price,order_date,order_time")
	if withTarget {
		b.WriteString(",total_price")
	}
	b.WriteString("\n")
	for day := 1; day <= 10; day++ {
		for k := 0; k < 4; k++ {
			i := (day + k) % len(names)
			qty := 1 + (day+2*k)%3
			fmt.Fprintf(&b, "%s,%s,%d,%.2f,%02d/04/2024,%02d:15:00",
				names[i], []string{"S", "M", "L"}[k%3], qty, prices[i], day, 11+2*k)
			if withTarget {
				fmt.Fprintf(&b, ",%.2f", float64(qty)*prices[i])
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.UploadDir = filepath.Join(dir, "uploads")
	cfg.Paths.ModelDir = filepath.Join(dir, "models")
	cfg.Compare.Folds = 3
	cfg.Models.SVR.MaxIter = 200
	cfg.Server.MaxUploadBytes = 1 << 20
	return New(cfg)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	return do(t, s, req)
}

func uploadID(t *testing.T, s *Server, content string) string {
	t.Helper()
	rec := upload(t, s, "sales.csv", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up Upload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	return up.ID
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ErrResponse {
	t.Helper()
	var p ErrResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), rec.Body.String())
	return p
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	rec := upload(t, s, "sales.csv", salesCSV(true))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var up Upload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.NotEmpty(t, up.ID)
	assert.Equal(t, 40, up.Rows)
	assert.Contains(t, up.Columns, "total_price")

	stored, err := s.Store().Get(up.ID)
	require.NoError(t, err)
	_, err = os.Stat(stored.path)
	assert.NoError(t, err)
}

func TestUploadRejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		status   int
	}{
		{"wrong extension", "file", "sales.txt", "a,b\n1,2\n", http.StatusBadRequest},
		{"missing field", "data", "sales.csv", "a,b\n1,2\n", http.StatusBadRequest},
		{"empty csv", "file", "sales.csv", "", http.StatusBadRequest},
		{"too large", "file", "sales.csv", strings.Repeat("x", 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.field, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", ctype)
			rec := do(t, s, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.status, decodeProblem(t, rec).Status)
		})
	}
}

func TestProcessFlow(t *testing.T) {
	s := newTestServer(t)
	id := uploadID(t, s, salesCSV(true))

	// 処理前は409
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/forecast/"+id, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/process/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proc ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proc))
	assert.Equal(t, id, proc.FileID)
	assert.Equal(t, "total_price", proc.Target)
	assert.Contains(t, proc.FeatureNames, "hour")
	require.NotNil(t, proc.Report)
	assert.Len(t, proc.Report.Models, 3)

	_, err := os.Stat(filepath.Join(s.cfg.Paths.ModelDir, id, pipeline.ResultsFile))
	assert.NoError(t, err)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/forecast/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fc ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Len(t, fc.Points, 10)
	assert.Equal(t, proc.Report.BestModel.Name, fc.BestModel)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/products/"+id+"?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var prods ProductsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prods))
	assert.Len(t, prods.Products, 2)
	assert.Equal(t, "pizza_name", prods.ProductColumn)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/products/"+id+"?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, name := range []string{"comparison.png", "forecast.png"} {
		rec = do(t, s, httptest.NewRequest(http.MethodGet, "/charts/"+id+"/"+name, nil))
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), name)
	}
}

func TestProcessWithoutTarget(t *testing.T) {
	s := newTestServer(t)
	id := uploadID(t, s, salesCSV(false))

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/process/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proc ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proc))
	assert.Nil(t, proc.Report)
	assert.Empty(t, proc.Target)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/forecast/"+id, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/charts/"+id+"/comparison.png", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 商品ランキングは目的変数がなくても返せる
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/products/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownUpload(t *testing.T) {
	s := newTestServer(t)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/process/nope", nil),
		httptest.NewRequest(http.MethodGet, "/forecast/nope", nil),
		httptest.NewRequest(http.MethodGet, "/products/nope", nil),
		httptest.NewRequest(http.MethodGet, "/charts/nope/comparison.png", nil),
	} {
		rec := do(t, s, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.URL.Path)
		assert.Equal(t, TypeNotFound, decodeProblem(t, rec).Type)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(t, s, req)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
