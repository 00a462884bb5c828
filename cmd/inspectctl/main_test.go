package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_SendsExpectedRequests(t *testing.T) {
	var got []string
	var lastBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.RequestURI())
		lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()
	c := &client{base: ts.URL, http: &http.Client{Timeout: time.Second}}

	require.NoError(t, c.dispatch("start", nil))
	require.NoError(t, c.dispatch("interval", []string{"5"}))
	assert.Equal(t, float64(5), lastBody["minutes"])
	require.NoError(t, c.dispatch("add-network", []string{"API", "https://a", "GET", "response.ok", "===", "false"}))
	assert.Equal(t, "response.ok === false", lastBody["alertRule"])
	require.NoError(t, c.dispatch("delete", []string{"page", "abc"}))
	require.NoError(t, c.dispatch("report", []string{"-config"}))
	require.NoError(t, c.addInteractive(strings.NewReader("example.com\n")))
	assert.Equal(t, "https://example.com", lastBody["url"])
	assert.Equal(t, "example.com", lastBody["name"])

	assert.Equal(t, []string{
		"POST /api/inspection/start",
		"PUT /api/inspection/interval",
		"POST /api/checks/network",
		"DELETE /api/checks/page/abc",
		"GET /api/report?include_config=true",
		"POST /api/checks/network",
	}, got)
}

func TestDispatch_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"interval must be at least one minute"}`))
	}))
	defer ts.Close()
	c := &client{base: ts.URL, http: &http.Client{Timeout: time.Second}}

	assert.Error(t, c.dispatch("interval", []string{"0"}))
	assert.Error(t, c.dispatch("interval", nil))
	assert.Error(t, c.dispatch("interval", []string{"x"}))
	assert.Error(t, c.dispatch("bogus", nil))
}
