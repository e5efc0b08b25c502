// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alvinbaena/credcheck/internal/server"
	"github.com/alvinbaena/credcheck/pkg/credset"
	"github.com/alvinbaena/credcheck/pkg/digest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliceHash   = digest.SumString("alice@example.com").Hex()
	hunter2Hash = digest.SumString("hunter2").Hex()
	unknownHash = digest.SumString("nobody").Hex()
)

func newTestRouter(t *testing.T, strict bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv, err := server.New(credset.New(aliceHash, hunter2Hash, "abcd"), server.Config{})
	require.NoError(t, err)

	return NewRouter(srv, strict, true)
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCheckApi_Verdicts(t *testing.T) {
	router := newTestRouter(t, false)

	tests := []struct {
		path  string
		body  string
		want  string
		found bool
	}{
		{"/v1/check/username", `{"hash":"` + aliceHash + `"}`, "Found", true},
		{"/v1/check/username", `{"hash":"` + unknownHash + `"}`, "Not Found", false},
		{"/v1/check/password", `{"hash":"` + hunter2Hash + `"}`, "Found", true},
		{"/v1/check/password", `{"hash":"abcd"}`, "Found", true},
		{"/v1/check/both", `{"username":"` + aliceHash + `","password":"` + hunter2Hash + `"}`, "FoundBoth", true},
		{"/v1/check/both", `{"username":"` + aliceHash + `","password":"` + unknownHash + `"}`, "FoundUsernameOnly", true},
		{"/v1/check/both", `{"username":"` + unknownHash + `","password":"` + hunter2Hash + `"}`, "FoundPasswordOnly", true},
		{"/v1/check/both", `{"username":"` + unknownHash + `","password":"` + unknownHash + `"}`, "NotFound", false},
	}

	for _, tt := range tests {
		w := post(router, tt.path, tt.body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp verdictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tt.want, resp.Verdict, tt.body)
		assert.Equal(t, tt.found, resp.Found, tt.body)
	}
}

func TestCheckApi_BadRequests(t *testing.T) {
	router := newTestRouter(t, false)

	for _, tc := range []struct{ path, body string }{
		{"/v1/check/username", `{}`},
		{"/v1/check/username", `not json`},
		{"/v1/check/password", `{"hash":"xyz"}`},
		{"/v1/check/both", `{"username":"` + aliceHash + `"}`},
		{"/v1/check/both", `{"username":"` + aliceHash + `","password":"a:b"}`},
	} {
		w := post(router, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.body)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	}
}

func TestCheckApi_Strict(t *testing.T) {
	router := newTestRouter(t, true)

	w := post(router, "/v1/check/password", `{"hash":"abcd"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(router, "/v1/check/password", `{"hash":"`+hunter2Hash+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatsApi(t *testing.T) {
	router := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap server.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Zero(t, snap.Queries)
	assert.Contains(t, snap.Verdicts, "Not Found")
}

func TestSelfSignedTLS(t *testing.T) {
	cfg, err := SelfSignedTLS()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
}
