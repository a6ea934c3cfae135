package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/models"
	"github.com/buconnects/server/realtime"
	"github.com/buconnects/server/routes"
	"github.com/buconnects/server/utils"
)

type testApp struct {
	router    *gin.Engine
	db        *gorm.DB
	uploadDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	uploadDir := t.TempDir()
	config.Set(config.AppConfig{
		GinMode:            "test",
		LogLevel:           "silent",
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 10000,
		UploadDir:          uploadDir,
	})
	utils.SetRedis(nil)

	db, err := config.OpenDatabase(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.Migrate(db, models.All()...))

	hub := realtime.NewHub(config.ChatDeliveryAll)
	go hub.Run()
	t.Cleanup(hub.Stop)

	return &testApp{router: routes.SetupRouter(db, hub), db: db, uploadDir: uploadDir}
}

func (a *testApp) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type upload struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func (a *testApp) doMultipart(method, path string, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		part, _ := mw.CreatePart(h)
		_, _ = part.Write(file.content)
	}
	_ = mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeObject(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testApp) register(t *testing.T, name, email, password, campus string) uint {
	t.Helper()
	w := a.do(http.MethodPost, "/api/register", map[string]string{
		"name": name, "email": email, "password": password, "campus": campus,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return uint(decodeObject(t, w)["id"].(float64))
}

// useMiniredis backs the list cache with an in-process Redis for this test.
func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	utils.SetRedis(rdb)
	t.Cleanup(func() {
		utils.SetRedis(nil)
		rdb.Close()
	})
	return mr
}
