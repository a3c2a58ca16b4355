package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/docs"
	"scribe/internal/config"
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

var (
	adminCaller = models.Caller{UserID: 99, Role: models.RoleAdmin, Name: "Root"}
	aliceCaller = models.Caller{UserID: 1, Role: models.RoleUser, Name: "Alice"}
	bobCaller   = models.Caller{UserID: 2, Role: models.RoleUser, Name: "Bob"}
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            testSecret,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "*",
		PostsDefaultPageSize: 10,
		PostsMaxPageSize:     100,
		LockWaitTimeout:      2 * time.Second,
		LockTTL:              5 * time.Second,
		RequestTimeout:       5 * time.Second,
	}
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	return s.NewApp(), db
}

func tokenFor(t *testing.T, caller models.Caller) string {
	t.Helper()
	token, err := middleware.NewAuth(testSecret).Sign(caller, time.Hour)
	require.NoError(t, err)
	return token
}

// call performs a request and decodes the JSON response body.
func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", body)
	return d
}

func TestPostScenario(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := tokenFor(t, adminCaller)
	aliceToken := tokenFor(t, aliceCaller)
	bobToken := tokenFor(t, bobCaller)

	status, body := call(t, app, http.MethodPost, "/api/categories", adminToken, map[string]any{"name": "Tech"})
	require.Equal(t, http.StatusCreated, status, body)
	categoryID := data(t, body)["id"]
	assert.Equal(t, models.DefaultCategoryColor, data(t, body)["color"])

	status, body = call(t, app, http.MethodPost, "/api/posts", aliceToken, map[string]any{
		"title":       "Hello World",
		"content":     "First post",
		"category":    categoryID,
		"isPublished": true,
		"tags":        []string{"intro"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	post := data(t, body)
	assert.Equal(t, "hello-world", post["slug"])
	assert.Equal(t, float64(0), post["viewCount"])
	assert.Equal(t, "Alice", post["author"].(map[string]any)["name"])
	assert.Equal(t, "Tech", post["category"].(map[string]any)["name"])
	postPath := "/api/posts/" + jsonNumber(post["id"])

	status, body = call(t, app, http.MethodGet, "/api/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(t, body)["viewCount"])

	status, body = call(t, app, http.MethodPut, postPath, bobToken, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, body["code"])

	status, body = call(t, app, http.MethodPut, postPath, aliceToken, map[string]any{"title": "Hello Go"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "hello-go", data(t, body)["slug"])
	assert.Equal(t, "First post", data(t, body)["content"])

	status, body = call(t, app, http.MethodPost, postPath+"/comments", bobToken, map[string]any{"content": "Nice!"})
	require.Equal(t, http.StatusCreated, status, body)
	comments := data(t, body)["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "Bob", comments[0].(map[string]any)["user"].(map[string]any)["name"])

	status, _ = call(t, app, http.MethodDelete, "/api/categories/"+jsonNumber(categoryID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = call(t, app, http.MethodDelete, postPath, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["total"])
	assert.Equal(t, float64(0), body["count"])
	assert.Empty(t, body["data"])
}

func jsonNumber(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestGetPosts_PaginationAndDrafts(t *testing.T) {
	app, db := newTestApp(t)
	cat := testutil.CreateCategory(t, db, "Tech")
	for i := 0; i < 3; i++ {
		testutil.CreatePost(t, db, aliceCaller.UserID, cat.ID, testutil.Published())
	}
	testutil.CreatePost(t, db, bobCaller.UserID, cat.ID)

	status, body := call(t, app, http.MethodGet, "/api/posts?page=2&pageSize=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(2), body["pages"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(1), body["count"])

	status, body = call(t, app, http.MethodGet, "/api/posts?limit=10", tokenFor(t, bobCaller), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["total"])

	status, body = call(t, app, http.MethodGet, "/api/posts?page=9", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(9), body["page"])
	assert.Empty(t, body["data"])

	status, body = call(t, app, http.MethodGet, "/api/posts?category=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "category")

	// A bad token on a public route degrades to anonymous.
	status, body = call(t, app, http.MethodGet, "/api/posts", "not-a-token", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total"])
}

func TestSearchPosts_Handler(t *testing.T) {
	app, db := newTestApp(t)
	cat := testutil.CreateCategory(t, db, "Tech")
	testutil.CreatePost(t, db, aliceCaller.UserID, cat.ID, testutil.Published(), testutil.WithTitle("Zyzzyva Patterns"))

	status, body := call(t, app, http.MethodGet, "/api/posts/search?q=zyzzyva", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = call(t, app, http.MethodGet, "/api/posts/search?q=%20%20", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeInvalidQuery, body["code"])
}

func TestCreatePost_RequestValidation(t *testing.T) {
	app, db := newTestApp(t)
	cat := testutil.CreateCategory(t, db, "Tech")
	token := tokenFor(t, aliceCaller)

	tests := []struct {
		name           string
		token          string
		body           any
		expectedStatus int
		expectedField  string
	}{
		{"no token", "", map[string]any{"title": "t", "content": "c", "category": cat.ID}, http.StatusUnauthorized, ""},
		{"malformed json", token, `{"title":`, http.StatusBadRequest, ""},
		{"missing title", token, map[string]any{"content": "c", "category": cat.ID}, http.StatusBadRequest, "title"},
		{"long title", token, map[string]any{"title": strings.Repeat("t", 101), "content": "c", "category": cat.ID}, http.StatusBadRequest, "title"},
		{"missing category", token, map[string]any{"title": "t", "content": "c"}, http.StatusBadRequest, "category"},
		{"unknown category", token, map[string]any{"title": "t", "content": "c", "category": 404}, http.StatusBadRequest, "category"},
		{"long tag", token, map[string]any{"title": "t", "content": "c", "category": cat.ID, "tags": []string{strings.Repeat("x", 31)}}, http.StatusBadRequest, "tags[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, http.MethodPost, "/api/posts", tt.token, tt.body)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, false, body["success"])
			if tt.expectedField != "" {
				assert.Contains(t, body["fields"], tt.expectedField)
			}
		})
	}
}

func TestCategoryRoutes(t *testing.T) {
	app, db := newTestApp(t)
	cat := testutil.CreateCategory(t, db, "Tech")
	adminToken := tokenFor(t, adminCaller)

	status, body := call(t, app, http.MethodPost, "/api/categories", tokenFor(t, aliceCaller), map[string]any{"name": "Art"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, body["code"])

	status, body = call(t, app, http.MethodPost, "/api/categories", adminToken, map[string]any{"name": "Art", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "color")

	status, _ = call(t, app, http.MethodPost, "/api/categories", adminToken, map[string]any{"name": "tech"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, app, http.MethodPut, "/api/categories/"+jsonNumber(cat.ID), adminToken, map[string]any{"color": "#000"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "#000", data(t, body)["color"])
	assert.Equal(t, "Tech", data(t, body)["name"])

	status, body = call(t, app, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, _ = call(t, app, http.MethodGet, "/api/categories/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodGet, "/api/categories/999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, body["code"])

	status, _ = call(t, app, http.MethodDelete, "/api/categories/"+jsonNumber(cat.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAddComment_Handler(t *testing.T) {
	app, db := newTestApp(t)
	cat := testutil.CreateCategory(t, db, "Tech")
	post := testutil.CreatePost(t, db, aliceCaller.UserID, cat.ID, testutil.Published())
	path := "/api/posts/" + jsonNumber(post.ID) + "/comments"

	status, _ := call(t, app, http.MethodPost, path, "", map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := call(t, app, http.MethodPost, path, tokenFor(t, bobCaller), map[string]any{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "content")

	status, _ = call(t, app, http.MethodPost, "/api/posts/404/comments", tokenFor(t, bobCaller), map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodPost, "/api/posts/abc/comments", tokenFor(t, bobCaller), map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndFallbackRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := call(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	status, body = call(t, app, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])

	status, body = call(t, app, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, body["code"])
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "category ID", humanizeParam("categoryId"))
	assert.Equal(t, "blog post ID", humanizeParam("blogPostId"))
	assert.Equal(t, "slug", humanizeParam("slug"))
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = parsePagination(c)
		return nil
	})

	tests := []struct {
		query    string
		expected Pagination
	}{
		{"", Pagination{Page: 1}},
		{"?page=3&pageSize=25", Pagination{Page: 3, PageSize: 25}},
		{"?limit=7", Pagination{Page: 1, PageSize: 7}},
		{"?page=x&pageSize=y", Pagination{Page: 1}},
	}
	for _, tt := range tests {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got, tt.query)
	}
}

func TestSwaggerHostMatchesDefaultPort(t *testing.T) {
	t.Setenv("PORT", "")
	defer viper.Reset()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost:"+cfg.Port, docs.SwaggerInfo.Host)
}
