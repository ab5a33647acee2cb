//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/ai-career-coach/internal/adapter/httpserver"
)

// The suite runs against a live server started with AI_BACKEND=stub, e.g.
//
//	E2E_BASE_URL=http://localhost:8080 E2E_JWT_SECRET=dev E2E_USER=e2e-user \
//	E2E_DOCUMENT_ID=$(coachctl document create --user e2e-user) go test -tags e2e ./test/e2e/...
const timeout = 60 * time.Second

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func baseURL() string { return getenv("E2E_BASE_URL", "http://localhost:8080") }

func requireLive(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	resp, err := http.Get(baseURL() + "/healthz")
	if err != nil {
		t.Skipf("server not reachable at %s: %v", baseURL(), err)
	}
	_ = resp.Body.Close()
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := httpserver.IssueToken(getenv("E2E_JWT_SECRET", "dev"), getenv("E2E_JWT_ISSUER", ""), getenv("E2E_USER", "e2e-user"), time.Hour)
	require.NoError(t, err)
	return tok
}

// call sends body as JSON and returns the response with its body read.
func call(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL()+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer(t))
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}
