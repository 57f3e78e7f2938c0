package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/database"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/services"
	"github.com/school-system/reportgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type blankRasterizer struct{}

func (blankRasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 10, 14)), nil
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	svc    Services
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))

	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadBytes: 1 << 20, LoginRatePerMinute: 100},
		JWT:    config.JWTConfig{Secret: "test", AccessExpiry: time.Minute, RefreshExpiry: time.Hour},
		Argon2: config.Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		CORS:   config.CORSConfig{Origins: []string{"http://localhost:5173"}},
		AI:     config.AIConfig{ChunkSize: 2},
		Export: config.ExportConfig{PagesPerFile: 50},
	}
	svc := NewServices(cfg, db, store.NewGormStore(db), blankRasterizer{}, nil)

	api := &testAPI{t: t, router: NewRouter(cfg, svc, nil), svc: svc}
	api.createUser("admin@school.test", services.RoleAdmin)
	api.createUser("teacher@school.test", services.RoleTeacher)
	return api
}

func (a *testAPI) createUser(email, role string) {
	a.t.Helper()
	user := &models.User{Email: email, Role: role, FullName: role, IsActive: true}
	require.NoError(a.t, a.svc.Auth.CreateUser(context.Background(), user, "password123"))
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/auth/login", "", jsonBody(a.t, gin.H{"email": email, "password": "password123"}), "application/json")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Tokens services.TokenPair `json:"tokens"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Tokens.AccessToken
}

func (a *testAPI) do(method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func upload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

var marks = [][]interface{}{
	{"Name", "Father's Name", "Roll No.", "Class", "Maths", "Physics"},
	{"Jane Doe", "John Doe", 1, "10", 95, 90},
	{"Sam Roe", "Tom Roe", 2, "10", 40, 35},
	{"Ann Lee", "Ray Lee", 3, "10", 70, 72},
}

func TestHealthAndAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/settings", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/v1/auth/login", "", jsonBody(t, gin.H{"email": "admin@school.test", "password": "nope"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/users", api.login("teacher@school.test"), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/v1/users", api.login("admin@school.test"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestGenerateAndHistoryFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	body, ct := upload(t, "file", "term1.xlsx", workbook(t, marks))
	w := api.do(http.MethodPost, "/api/v1/reports/generate", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res services.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Generated)
	assert.Equal(t, 1.0, res.Progress)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "Jane Doe", res.Results[0].StudentData.Name)
	assert.Equal(t, "A+", res.Results[0].Grade)
	assert.Equal(t, "F", res.Results[1].Grade)
	require.Len(t, res.Cards, 3)
	require.NotNil(t, res.HistoryID)
	id := res.HistoryID.String()

	w = api.do(http.MethodGet, "/api/v1/history", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.HistoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "term1.xlsx", items[0].FileName)

	// Another user sees none of it.
	w = api.do(http.MethodGet, "/api/v1/history/"+id, api.login("admin@school.test"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/v1/history/"+id, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Students []models.StudentRecord `json:"students"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Students, 3)
	assert.Equal(t, "John Doe", detail.Students[0].FathersName)

	w = api.do(http.MethodGet, "/api/v1/history/"+id+"/mailto?to=head@school.test", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailto:head@school.test?subject=Report%20Cards%20Ready")

	w = api.do(http.MethodGet, "/api/v1/history/"+id+"/mailto?to=bad", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/v1/history/"+id+"/email", token, jsonBody(t, gin.H{"to": "bad"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/history/"+id+"/email", token, jsonBody(t, gin.H{"to": "head@school.test"}), "application/json")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/v1/history/"+id+"/export", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Export-Files"))
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "term1_report_cards.pdf", zr.File[0].Name)

	w = api.do(http.MethodDelete, "/api/v1/history/"+id, token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, "/api/v1/history/"+id, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Generation, email, export and delete were audited.
	w = api.do(http.MethodGet, "/api/v1/audit/recent", api.login("admin@school.test"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var activity []services.ActivityWithUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	assert.Len(t, activity, 4)
}

func TestGenerateStreamsProgress(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	body, ct := upload(t, "file", "term1.xlsx", workbook(t, marks))
	w := api.do(http.MethodPost, "/api/v1/reports/generate?stream=true", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code)

	out := w.Body.String()
	// Chunk size two over three students: two progress events.
	assert.Equal(t, 2, strings.Count(out, "event:progress"))
	assert.Contains(t, out, "event:result")
}

func TestExportReturnsZip(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	body, ct := upload(t, "file", "Term 2.xlsx", workbook(t, marks))
	w := api.do(http.MethodPost, "/api/v1/reports/export", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Term_2_report_cards.zip")
	assert.Empty(t, w.Header().Get("X-Export-Error"))
}

func TestUploadRejections(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	body, ct := upload(t, "file", "marks.csv", []byte("Name,Maths\nA,1\n"))
	w := api.do(http.MethodPost, "/api/v1/reports/generate", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid File Type")

	body, ct = upload(t, "file", "empty.xlsx", workbook(t, marks[:1]))
	w = api.do(http.MethodPost, "/api/v1/reports/generate", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/reports/generate", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	w := api.do(http.MethodGet, "/api/v1/settings", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Springfield High")

	w = api.do(http.MethodPut, "/api/v1/settings", token, jsonBody(t, gin.H{"theme_color": "pink"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPut, "/api/v1/settings", token, jsonBody(t, gin.H{"school_name": "Riverdale High", "theme_color": "red"}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var s models.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "Riverdale High", s.SchoolName)
	assert.Equal(t, "red", s.ThemeColor)

	body, ct := upload(t, "image", "logo.txt", []byte("not an image"))
	w = api.do(http.MethodPost, "/api/v1/settings/images/logo", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/settings/images/banner", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCardDownload(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("teacher@school.test")

	result := gin.H{
		"studentData": gin.H{"Name": "Jane Doe", "Maths": 95},
		"totalMarks":  95,
		"percentage":  95,
		"grade":       "A+",
		"subjects":    `[{"name":"Maths","marks":95}]`,
		"remarks":     "Outstanding",
	}
	w := api.do(http.MethodPost, "/api/v1/reports/card", token, jsonBody(t, result), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="Jane_Doe_report_card.html"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Jane Doe")

	w = api.do(http.MethodPost, "/api/v1/reports/single", token, jsonBody(t, gin.H{"Name": "Sam", "Maths": 50}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"studentName":"Sam"`)
}
