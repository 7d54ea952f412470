package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dhima/reading-log/internal/api/middleware"
	"github.com/dhima/reading-log/internal/api/response"
	"github.com/dhima/reading-log/internal/identity"
	"github.com/dhima/reading-log/internal/logging"
	"github.com/dhima/reading-log/internal/models"
	"github.com/dhima/reading-log/internal/readinglog"
	"github.com/dhima/reading-log/internal/testutil/fakes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readingLogFixture struct {
	router *gin.Engine
	store  *fakes.FakeLogStore
}

func newReadingLogFixture(t *testing.T, opts ...readinglog.Option) readingLogFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := fakes.NewFakeLogStore()
	svc := readinglog.NewService(store, nil, opts...)
	handler := NewReadingLogHandler(logging.NewNoOpLogger(), svc)
	provider := identity.NewRandomProvider(true)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/save", middleware.Token(middleware.TokenOptions{Provider: provider.Passthrough()}), handler.SaveLog)
	router.GET("/logs", middleware.Token(middleware.TokenOptions{Provider: provider, RememberCookie: true}), handler.ListLogs)

	return readingLogFixture{router: router, store: store}
}

func (f readingLogFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeSave(t *testing.T, w *httptest.ResponseRecorder) models.SaveLogResponse {
	t.Helper()
	var resp models.SaveLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSaveLog_WhenValid_ThenReturns200WithIDAndCreatedAt(t *testing.T) {
	// Arrange
	f := newReadingLogFixture(t)

	// Act
	w := f.do(http.MethodPost, "/save?token=abc", `{"title":"Chapter 1","url":"https://read.amazon.com/?asin=B00TEST"}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSave(t, w)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(1), resp.ID)
	require.NotNil(t, resp.CreatedAt)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, 1, f.store.Count("abc"))
}

func TestSaveLog_WhenConsecutiveDuplicate_ThenReturnsExistingRowFlaggedDuplicate(t *testing.T) {
	f := newReadingLogFixture(t)
	first := decodeSave(t, f.do(http.MethodPost, "/save?token=abc", `{"title":"Chapter 1"}`))

	w := f.do(http.MethodPost, "/save?token=abc", `{"title":"Chapter 1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSave(t, w)
	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.Duplicate)
	assert.Equal(t, first.ID, resp.ID)
	assert.Equal(t, 1, f.store.Count("abc"))
}

func TestSaveLog_WhenTokenOrTitleMissing_ThenReturns400AndWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"missing token", "/save", `{"title":"Chapter 1"}`},
		{"missing title", "/save?token=abc", `{"url":"https://example.com"}`},
		{"empty title", "/save?token=abc", `{"title":""}`},
		{"empty body", "/save?token=abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReadingLogFixture(t)

			w := f.do(http.MethodPost, tt.target, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeErrorBody(t, w)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, "missing token or title", body.Message)
			assert.Equal(t, 0, f.store.Calls)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestSaveLog_WhenBodyMalformed_ThenReturns400(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"not json", `{"title":`, "invalid request body"},
		{"title not a string", `{"title":42}`, "invalid request body"},
		{"url not a string", `{"title":"x","url":["a"]}`, "invalid request body"},
		{"not an object", `["title"]`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReadingLogFixture(t)

			w := f.do(http.MethodPost, "/save?token=abc", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeErrorBody(t, w).Message)
			assert.Equal(t, 0, f.store.Calls)
		})
	}
}

func TestSaveLog_WhenNullURL_ThenAccepted(t *testing.T) {
	f := newReadingLogFixture(t)

	w := f.do(http.MethodPost, "/save?token=abc", `{"title":"Chapter 1","url":null}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSaveLog_WhenTokenInCookie_ThenUsesCookie(t *testing.T) {
	f := newReadingLogFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(`{"title":"Chapter 1"}`))
	req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.store.Count("cookie-token"))
}

func TestSaveLog_WhenPrivateTitleAndSkipping_ThenReturnsSkipped(t *testing.T) {
	f := newReadingLogFixture(t, readinglog.WithSkipPrivateTitles(true))

	w := f.do(http.MethodPost, "/save?token=abc", `{"title":"*Secret"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"skipped","message":"private title not stored"}`, w.Body.String())
	assert.Equal(t, 0, f.store.Count("abc"))
}

func TestSaveLog_WhenStorageFails_ThenReturns500WithoutCause(t *testing.T) {
	f := newReadingLogFixture(t)
	f.store.Err = errors.New("pq: connection refused")

	w := f.do(http.MethodPost, "/save?token=abc", `{"title":"Chapter 1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotEmpty(t, body.TraceID)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestListLogs_WhenWorkedExample_ThenNewestFirst(t *testing.T) {
	// Arrange
	f := newReadingLogFixture(t)
	for _, title := range []string{"Chapter 1", "Chapter 1", "Chapter 2"} {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/save?token=abc", `{"title":"`+title+`"}`).Code)
	}

	// Act
	w := f.do(http.MethodGet, "/logs?token=abc", "")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status string `json:"status"`
		Logs   []struct {
			ID        int64   `json:"id"`
			Title     string  `json:"title"`
			URL       *string `json:"url"`
			CreatedAt string  `json:"created_at"`
			Token     *string `json:"token"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "Chapter 2", resp.Logs[0].Title)
	assert.Equal(t, "Chapter 1", resp.Logs[1].Title)
	assert.Nil(t, resp.Logs[0].Token)
	assert.NotEmpty(t, resp.Logs[0].CreatedAt)
	assert.Contains(t, w.Body.String(), `"url":null`)
}

func TestListLogs_WhenNoEntries_ThenEmptyArray(t *testing.T) {
	f := newReadingLogFixture(t)

	w := f.do(http.MethodGet, "/logs?token=nobody", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","logs":[]}`, w.Body.String())
}

func TestListLogs_WhenNoToken_ThenIssuesCookieAndReturnsEmptyHistory(t *testing.T) {
	f := newReadingLogFixture(t)

	w := f.do(http.MethodGet, "/logs", "")

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Len(t, cookies[0].Value, identity.TokenLength)
	assert.JSONEq(t, `{"status":"success","logs":[]}`, w.Body.String())
}

func TestListLogs_WhenNoTokenAndIssuingDisabled_ThenReturns400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := readinglog.NewService(fakes.NewFakeLogStore(), nil)
	handler := NewReadingLogHandler(logging.NewNoOpLogger(), svc)
	router := gin.New()
	router.GET("/logs", middleware.Token(middleware.TokenOptions{Provider: identity.NewRandomProvider(false)}), handler.ListLogs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing token", decodeErrorBody(t, w).Message)
}

func TestListLogs_WhenStorageFails_ThenReturns500(t *testing.T) {
	f := newReadingLogFixture(t)
	f.store.Err = errors.New("timeout")

	w := f.do(http.MethodGet, "/logs?token=abc", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeErrorBody(t, w).Message)
}
