package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"

	"seedchain/core"
	"seedchain/crypto"
	"seedchain/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestServer(t *testing.T, limit RateLimit) (*Server, [20]byte, [20]byte) {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), core.DefaultParams(), nil, nil)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	alice, target := addr(1), addr(9)
	if _, err := node.ApplyGenesis(core.Genesis{Accounts: []core.GenesisAccount{{Address: alice, Balance: uint256.NewInt(5000)}}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := node.Apply(core.Tx{Op: core.OpAdd, Caller: alice, Target: target, Score: 75}); err != nil {
		t.Fatalf("add: %v", err)
	}
	return NewServer(node, nil, limit, nil), alice, target
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestCandidateEndpoints(t *testing.T) {
	srv, alice, target := newTestServer(t, RateLimit{})
	h := srv.Handler()

	res := get(t, h, "/v1/candidates")
	if res.Code != http.StatusOK {
		t.Fatalf("candidates: %d %s", res.Code, res.Body.String())
	}
	var list []candidateJSON
	if err := json.Unmarshal(res.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Score != 75 || list[0].Pledge != "800" {
		t.Fatalf("unexpected candidates %+v", list)
	}
	if list[0].Pathfinder != crypto.FromAccount(alice).String() {
		t.Fatalf("pathfinder not bech32 encoded: %s", list[0].Pathfinder)
	}

	res = get(t, h, "/v1/candidates/"+crypto.FromAccount(target).String())
	if res.Code != http.StatusOK {
		t.Fatalf("candidate: %d %s", res.Code, res.Body.String())
	}
	res = get(t, h, "/v1/candidates/0x0000000000000000000000000000000000000042")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	res = get(t, h, "/v1/candidates/nope")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}

	res = get(t, h, "/v1/candidates/"+crypto.FromAccount(target).String()+"/dispute")
	if res.Code != http.StatusOK {
		t.Fatalf("dispute: %d %s", res.Code, res.Body.String())
	}
	var d disputeJSON
	if err := json.Unmarshal(res.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode dispute: %v", err)
	}
	if d.Record != nil || d.Stage != "hashes" {
		t.Fatalf("undisputed candidate should have no record: %+v", d)
	}

	res = get(t, h, "/v1/accounts/"+crypto.FromAccount(alice).String())
	var acc accountJSON
	if err := json.Unmarshal(res.Body.Bytes(), &acc); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acc.Balance != "4000" {
		t.Fatalf("unexpected balance %s", acc.Balance)
	}
}

func TestEventsRequireJournal(t *testing.T) {
	srv, _, _ := newTestServer(t, RateLimit{})
	if res := get(t, srv.Handler(), "/v1/events"); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	srv, _, _ := newTestServer(t, RateLimit{RequestsPerSecond: 0.001, Burst: 1})
	h := srv.Handler()
	if res := get(t, h, "/v1/height"); res.Code != http.StatusOK {
		t.Fatalf("first request: %d", res.Code)
	}
	if res := get(t, h, "/v1/height"); res.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", res.Code)
	}
	if res := get(t, h, "/healthz"); res.Code != http.StatusOK {
		t.Fatalf("health checks are not limited, got %d", res.Code)
	}
}

func TestRequestLogMasksClient(t *testing.T) {
	srv, _, _ := newTestServer(t, RateLimit{})
	var buf bytes.Buffer
	srv.logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	req := httptest.NewRequest(http.MethodGet, "/v1/height", nil)
	req.RemoteAddr = "203.0.113.7:4100"
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["client"] != "[REDACTED]" {
		t.Fatalf("client address leaked: %v", line["client"])
	}
	if line["path"] != "/v1/height" || line["status"] != float64(http.StatusOK) {
		t.Fatalf("unexpected request line %v", line)
	}
	if bytes.Contains(buf.Bytes(), []byte("203.0.113.7")) {
		t.Fatalf("raw address in log: %s", buf.String())
	}
}
