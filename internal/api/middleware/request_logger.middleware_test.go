package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/pkg/logger"
)

func TestRequestLogger_PassesRequestThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.New("error")))
	r.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hi"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "hi" {
		t.Fatalf("unexpected: %d %q", w.Code, w.Body.String())
	}
}

func TestRequestLogger_ErrorStatusesDoNotAlterResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.New("error")))
	r.GET("/fail", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})
	r.GET("/reject", func(c *gin.Context) {
		c.String(http.StatusBadRequest, "nope")
	})

	for path, want := range map[string]int{"/fail": 500, "/reject": 400} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("path %s: want %d got %d", path, want, w.Code)
		}
	}
}
