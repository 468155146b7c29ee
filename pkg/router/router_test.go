package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func echo(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name + ":" + strings.Join(Params(r), ",")))
	}
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r := New(zerolog.Nop())
	r.GET("/api/v1/pipelines/*/history", echo("history"))
	r.GET("/api/v1/pipelines/*", echo("get"))
	r.DELETE("/api/v1/pipelines/*", echo("delete"))
	r.GET("/api/v1/pipelines", echo("list"))

	assert.Equal(t, "list:", do(r, http.MethodGet, "/api/v1/pipelines").Body.String())
	assert.Equal(t, "get:payroll", do(r, http.MethodGet, "/api/v1/pipelines/payroll").Body.String())
	assert.Equal(t, "delete:payroll", do(r, http.MethodDelete, "/api/v1/pipelines/payroll/").Body.String())
	assert.Equal(t, "history:payroll", do(r, http.MethodGet, "/api/v1/pipelines/payroll/history").Body.String())
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := New(zerolog.Nop())
	r.GET("/api/v1/pipelines/*", echo("get"))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/pipelines/a/b/c").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodPost, "/api/v1/pipelines/a").Code)
}

func TestRouter_MountAndLogging(t *testing.T) {
	var buf bytes.Buffer
	r := New(zerolog.New(&buf))
	r.Handle("/swagger/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.Equal(t, http.StatusTeapot, do(r, http.MethodGet, "/swagger/index.html").Code)
	assert.Contains(t, buf.String(), `"path":"/swagger/index.html"`)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestParam(t *testing.T) {
	r := New(zerolog.Nop())
	r.GET("/a/*/b/*", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(Param(req, 1) + Param(req, 0) + Param(req, 5)))
	})
	assert.Equal(t, "yx", do(r, http.MethodGet, "/a/x/b/y").Body.String())
	assert.Equal(t, []string{"GET /a/*/b/*"}, r.Routes())
}
