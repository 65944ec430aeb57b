package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
)

// fakeServer routes on "METHOD /path" and records every call.
type fakeServer struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  map[string]int
	bodies map[string][]byte
	auth   []string
}

func newFakeServer(t *testing.T) (*fakeServer, *API, *Session) {
	t.Helper()
	fs := &fakeServer{
		t:      t,
		routes: make(map[string]http.HandlerFunc),
		calls:  make(map[string]int),
		bodies: make(map[string][]byte),
	}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	session := NewSession(nil)
	api := NewAPI(srv.URL+"/", session, srv.Client(), zap.NewNop())
	return fs, api, session
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls[key]++
	s.bodies[key] = body
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	h, ok := s.routes[key]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no route", http.StatusTeapot)
		return
	}
	h(w, r)
}

func (s *fakeServer) handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = h
}

// on answers method and path with a fixed JSON body.
func (s *fakeServer) on(method, path string, status int, body any) {
	data, err := json.Marshal(body)
	require.NoError(s.t, err)
	s.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(data)
	})
}

// onError answers with the server's error envelope.
func (s *fakeServer) onError(method, path string, status int, code, message string, details map[string]string) {
	s.on(method, path, status, common.CreateErrorResponse(code, message, details))
}

func (s *fakeServer) count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *fakeServer) lastBody(method, path string, dst any) {
	s.mu.Lock()
	body := s.bodies[method+" "+path]
	s.mu.Unlock()
	require.NoError(s.t, json.Unmarshal(body, dst))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	orgID      = uuid.MustParse("6f1d4a1e-0000-4000-8000-000000000001")
	employeeID = uuid.MustParse("6f1d4a1e-0000-4000-8000-000000000002")
	managerID  = uuid.MustParse("6f1d4a1e-0000-4000-8000-000000000003")
)

func employee() common.Identity {
	return common.Identity{UserID: employeeID, OrganizationID: orgID, Role: models.RoleEmployee}
}

func manager() common.Identity {
	return common.Identity{UserID: managerID, OrganizationID: orgID, Role: models.RoleManager}
}
