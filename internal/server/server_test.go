package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/reload"
)

func testBase(t *testing.T, n int) *kb.Base {
	t.Helper()
	docs := []corpus.Document{
		{
			ID:    "fastapi-guide/SKILL.md",
			Kind:  corpus.KindSkill,
			Skill: "fastapi-guide",
			Title: "FastAPI Guide",
			Body:  "# FastAPI Guide\n",
			Tags:  []string{"fastapi", "fastapi-guide"},
		},
		{
			ID:    "fastapi-guide/references/testing.md",
			Kind:  corpus.KindReference,
			Skill: "fastapi-guide",
			Title: "Testing",
			Body:  "Use TestClient with pytest fixtures.\n",
			Tags:  []string{"fastapi-guide", "testing"},
		},
	}
	for i := 0; i < n; i++ {
		docs = append(docs, corpus.Document{
			ID:    "bulk/references/doc-" + strconv.Itoa(i) + ".md",
			Kind:  corpus.KindReference,
			Skill: "bulk",
			Title: "Doc " + strconv.Itoa(i),
		})
	}
	store, err := corpus.NewStore(docs)
	require.NoError(t, err)
	b, err := kb.New(store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newTestServer(t *testing.T, b *kb.Base) *Server {
	t.Helper()
	s, err := New(reload.NewHolder(b), &Config{Host: "127.0.0.1", Port: 8765})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		config        *Config
		expectedError string
	}{
		{name: "valid config", config: &Config{Host: "localhost", Port: 8080}},
		{name: "empty host", config: &Config{Port: 8080}, expectedError: "host cannot be empty"},
		{name: "port too low", config: &Config{Host: "localhost", Port: 0}, expectedError: "port must be between 1 and 65535"},
		{name: "port too high", config: &Config{Host: "localhost", Port: 65536}, expectedError: "port must be between 1 and 65535"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t, testBase(t, 0)), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_Propagated(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestListDocuments_Pagination(t *testing.T) {
	s := newTestServer(t, testBase(t, 150))

	w := do(t, s, "/api/documents")
	require.Equal(t, http.StatusOK, w.Code)
	var page ListDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 152, page.Total)
	assert.Len(t, page.Documents, 100)
	assert.True(t, page.HasMore)
	assert.Equal(t, "fastapi-guide/SKILL.md", page.Documents[0].ID)

	w = do(t, s, "/api/documents?offset=150&limit=500")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 100, page.Limit)
	assert.Len(t, page.Documents, 2)
	assert.False(t, page.HasMore)

	w = do(t, s, "/api/documents?offset=999")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Documents)
}

func TestListDocuments_BadParams(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	for _, target := range []string{
		"/api/documents?offset=-1",
		"/api/documents?offset=x",
		"/api/documents?limit=0",
		"/api/documents?limit=abc",
	} {
		w := do(t, s, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/documents/fastapi-guide/references/testing.md")
	require.Equal(t, http.StatusOK, w.Code)
	var d corpus.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "Testing", d.Title)
	assert.Equal(t, "Use TestClient with pytest fixtures.\n", d.Body)
}

func TestGetDocument_NotFound(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/documents/nope/SKILL.md")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "nope/SKILL.md")
	assert.Equal(t, false, resp["success"])
}

func TestRoute(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/route?q=testing")
	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "fastapi-guide/references/testing.md", resp.Results[0].ID)
	assert.Equal(t, "tag", resp.Results[0].Why)
}

func TestRoute_EmptyQueryReturnsEmptyList(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/route?q=")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"query":"","results":[]}`, w.Body.String())
}

func TestRoute_Limit(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/route?q=fastapi-guide&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/route?q=x&limit=-2").Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/search?q=pytest")
	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fastapi-guide/references/testing.md", resp.Results[0].ID)
	assert.Equal(t, "fulltext", resp.Results[0].Why)
}

func TestTags(t *testing.T) {
	s := newTestServer(t, testBase(t, 0))

	w := do(t, s, "/api/tags")
	require.Equal(t, http.StatusOK, w.Code)
	var tags map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	assert.Equal(t, []string{"fastapi-guide/references/testing.md"}, tags["testing"])
	assert.Len(t, tags["fastapi-guide"], 2)
}

func TestNotLoaded(t *testing.T) {
	s, err := New(reload.NewHolder(nil), &Config{Host: "127.0.0.1", Port: 8765})
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, "/api/tags").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "/health").Code)
}

func TestStart_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	s, err := New(reload.NewHolder(testBase(t, 0)), &Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	url := "http://" + s.config.Addr() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	s, err := New(reload.NewHolder(nil), &Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}
