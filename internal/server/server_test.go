package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqliteRepo "github.com/sakif/flux-server/internal/repository/sqlite"
	"github.com/sakif/flux-server/internal/server"
)

// newTestServer runs the full stack against an in-memory SQLite store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := server.New(server.Config{Port: "0", Database: "sqlite::memory:"}, store, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return got
}

func leaderboard(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestServer_Live(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Flux Server is Live!", string(b))
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	post(t, ts, `{"action":"nope"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `flux_api_actions_total{action="unknown",result="unknown_action"}`)
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://game.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/api/leaderboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://game.example.com")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "*", resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api", "application/json", strings.NewReader(`{"action":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RegisterFlow(t *testing.T) {
	ts := newTestServer(t)

	first := post(t, ts, `{"action":"register","email":"  Alice@Example.com ","username":" alice "}`)
	assert.Equal(t, map[string]any{
		"status":   "success",
		"user_id":  "000001",
		"username": "alice",
		"email":    "alice@example.com",
	}, first)

	second := post(t, ts, `{"action":"register","email":"bob@example.com","username":"bob"}`)
	assert.Equal(t, "000002", second["user_id"])

	dupEmail := post(t, ts, `{"action":"register","email":"ALICE@example.com","username":"someone"}`)
	assert.Equal(t, map[string]any{"error": "email_exists"}, dupEmail)

	dupName := post(t, ts, `{"action":"register","email":"carol@example.com","username":"alice"}`)
	assert.Equal(t, map[string]any{"error": "name_taken"}, dupName)
}

func TestServer_ReconnectFlow(t *testing.T) {
	ts := newTestServer(t)

	missing := post(t, ts, `{"action":"reconnect","email":"ghost@example.com","username":"ghost"}`)
	assert.Equal(t, map[string]any{"error": "user_not_found"}, missing)

	post(t, ts, `{"action":"register","email":"me@example.com","username":"old"}`)

	renamed := post(t, ts, `{"action":"reconnect","email":"ME@example.com","username":"new"}`)
	assert.Equal(t, "success", renamed["status"])
	assert.Equal(t, "000001", renamed["user_id"])
	assert.Equal(t, "new", renamed["username"])

	for i := 0; i < 2; i++ {
		again := post(t, ts, `{"action":"reconnect","email":"me@example.com","username":"new"}`)
		assert.Equal(t, renamed, again)
	}
}

func TestServer_UpdateAndLeaderboard(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, "[]\n", leaderboard(t, ts))

	a := post(t, ts, `{"action":"register","email":"a@example.com","username":"A"}`)
	b := post(t, ts, `{"action":"register","email":"b@example.com","username":"B"}`)

	assert.Equal(t, map[string]any{"status": "updated"},
		post(t, ts, fmt.Sprintf(`{"action":"update","user_id":%q,"total_xp":10,"today_xp":5}`, a["user_id"])))
	assert.Equal(t, map[string]any{"status": "updated"},
		post(t, ts, fmt.Sprintf(`{"action":"update","user_id":%q,"total_xp":20,"today_xp":9}`, b["user_id"])))

	assert.JSONEq(t, `[["B",20,9],["A",10,5]]`, leaderboard(t, ts))

	assert.Equal(t, map[string]any{"error": "invalid_id"},
		post(t, ts, `{"action":"update","user_id":"abc","total_xp":1,"today_xp":1}`))
	assert.Equal(t, map[string]any{"error": "user_not_found"},
		post(t, ts, `{"action":"update","user_id":424242,"total_xp":1,"today_xp":1}`))

	// Values are stored as sent, negative and non-numeric included.
	post(t, ts, `{"action":"update","user_id":1,"total_xp":"lots","today_xp":-3}`)
	assert.JSONEq(t, `[["B",20,9],["A","lots",-3]]`, leaderboard(t, ts))
}

func TestServer_LeaderboardCappedAtFifty(t *testing.T) {
	ts := newTestServer(t)

	for i := 1; i <= 55; i++ {
		post(t, ts, fmt.Sprintf(`{"action":"register","email":"u%d@example.com","username":"u%d"}`, i, i))
		post(t, ts, fmt.Sprintf(`{"action":"update","user_id":%d,"total_xp":%d,"today_xp":%d}`, i, i, i))
	}

	var entries [][]any
	require.NoError(t, json.Unmarshal([]byte(leaderboard(t, ts)), &entries))
	require.Len(t, entries, 50)
	assert.Equal(t, []any{"u55", float64(55), float64(55)}, entries[0])
	assert.Equal(t, []any{"u6", float64(6), float64(6)}, entries[49])
}

func TestServer_MissingFieldsReadAsEmpty(t *testing.T) {
	ts := newTestServer(t)

	missing := post(t, ts, `{"action":"reconnect","username":"x"}`)
	assert.Equal(t, map[string]any{"error": "user_not_found"}, missing)

	registered := post(t, ts, `{"action":"register","email":"a@b.c"}`)
	assert.Equal(t, map[string]any{
		"status":   "success",
		"user_id":  "000001",
		"username": "",
		"email":    "a@b.c",
	}, registered)

	// A second nameless registration collides on the empty username.
	again := post(t, ts, `{"action":"register","email":"d@e.f"}`)
	assert.Equal(t, map[string]any{"error": "name_taken"}, again)
}

func TestServer_NonStringFieldIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api", "application/json",
		strings.NewReader(`{"action":"register","email":null,"username":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
