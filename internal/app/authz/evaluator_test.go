package authz_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appauthz "github.com/astro-web3/teams-gate/internal/app/authz"
	"github.com/astro-web3/teams-gate/internal/domain/authz"
	"github.com/astro-web3/teams-gate/internal/identity"
	"github.com/astro-web3/teams-gate/internal/infra/cache"
)

type mockDirectory struct {
	mu      sync.Mutex
	calls   int
	members map[cache.Key]bool
	err     error
}

func (m *mockDirectory) IsMember(_ context.Context, teamID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.members[cache.NewKey(teamID, userID)], nil
}

func (m *mockDirectory) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type gateFixture struct {
	evaluator appauthz.Evaluator
	store     cache.MemoryStore
	directory *mockDirectory
}

func newGateFixture(t *testing.T, members map[cache.Key]bool) *gateFixture {
	t.Helper()

	store := cache.NewMemoryStore()
	dir := &mockDirectory{members: members}

	memberships, err := authz.NewMembershipCache(store, dir, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return &gateFixture{
		evaluator: appauthz.NewEvaluator(appauthz.NewTeamResolver(0), authz.NewService(memberships)),
		store:     store,
		directory: dir,
	}
}

func withUser(r *http.Request, userID string) *http.Request {
	p := &identity.Principal{
		AuthenticationType: "test",
		Claims: []identity.Claim{
			{Type: "name", Value: "someone"},
			{Type: identity.ObjectIdentifierClaimType, Value: userID},
		},
	}
	return r.WithContext(identity.WithPrincipal(r.Context(), p))
}

func TestEvaluator_ScenarioA_QueryGrant(t *testing.T) {
	f := newGateFixture(t, map[cache.Key]bool{cache.NewKey("T1", "U1"): true})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects?teamId=T1", nil), "U1")
	decision := f.evaluator.Evaluate(req)

	if !decision.Allow || decision.Outcome != authz.OutcomeGranted {
		t.Fatalf("expected grant, got %+v", decision)
	}
	if f.directory.callCount() != 1 {
		t.Errorf("expected 1 directory call, got %d", f.directory.callCount())
	}
}

func TestEvaluator_ScenarioBC_BodyDenyIsCached(t *testing.T) {
	f := newGateFixture(t, nil)

	newReq := func() *http.Request {
		return withUser(httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"teamId":"T2"}`)), "U2")
	}

	first := f.evaluator.Evaluate(newReq())
	if first.Allow || first.Outcome != authz.OutcomeDenied {
		t.Fatalf("expected deny, got %+v", first)
	}
	if !errors.Is(first.Err, authz.ErrMembershipNotFound) {
		t.Errorf("expected ErrMembershipNotFound, got %v", first.Err)
	}

	entry, err := f.store.Get(context.Background(), cache.NewKey("T2", "U2"))
	if err != nil {
		t.Fatalf("expected cached entry: %v", err)
	}
	if entry.IsMember {
		t.Error("expected cached false for (T2, U2)")
	}

	second := f.evaluator.Evaluate(newReq())
	if second.Allow || second.Outcome != authz.OutcomeDenied {
		t.Fatalf("expected deny on repeat, got %+v", second)
	}
	if f.directory.callCount() != 1 {
		t.Errorf("expected no additional directory calls, got %d total", f.directory.callCount())
	}
}

func TestEvaluator_ScenarioD_MissingClaim(t *testing.T) {
	f := newGateFixture(t, map[cache.Key]bool{cache.NewKey("T1", "U1"): true})

	req := httptest.NewRequest(http.MethodGet, "/api/projects?teamId=T1", nil)
	req = req.WithContext(identity.WithPrincipal(req.Context(), &identity.Principal{
		Claims: []identity.Claim{{Type: "name", Value: "no-oid"}},
	}))

	decision := f.evaluator.Evaluate(req)

	if decision.Allow || decision.Outcome != authz.OutcomeResolutionError {
		t.Fatalf("expected resolution error, got %+v", decision)
	}
	if !errors.Is(decision.Err, authz.ErrMissingIdentityClaim) {
		t.Errorf("expected ErrMissingIdentityClaim, got %v", decision.Err)
	}
	if f.store.Len() != 0 || f.directory.callCount() != 0 {
		t.Errorf("expected no cache entry and no directory call, got %d entries, %d calls", f.store.Len(), f.directory.callCount())
	}
}

func TestEvaluator_NoPrincipal(t *testing.T) {
	f := newGateFixture(t, nil)

	decision := f.evaluator.Evaluate(httptest.NewRequest(http.MethodGet, "/api/projects?teamId=T1", nil))

	if decision.Allow || !errors.Is(decision.Err, authz.ErrMissingIdentityClaim) {
		t.Fatalf("expected missing identity deny, got %+v", decision)
	}
}

func TestEvaluator_ScenarioE_MalformedBody(t *testing.T) {
	f := newGateFixture(t, nil)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"teamId":`)), "U1")
	decision := f.evaluator.Evaluate(req)

	if decision.Allow || decision.Outcome != authz.OutcomeResolutionError {
		t.Fatalf("expected resolution error, got %+v", decision)
	}
	if !errors.Is(decision.Err, authz.ErrMalformedRequestBody) {
		t.Errorf("expected ErrMalformedRequestBody, got %v", decision.Err)
	}
	if f.store.Len() != 0 || f.directory.callCount() != 0 {
		t.Errorf("expected no cache or directory interaction")
	}
}

func TestEvaluator_LookupFailureDenies(t *testing.T) {
	f := newGateFixture(t, nil)
	f.directory.err = errors.New("roster unavailable")

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects?teamId=T1", nil), "U1")
	decision := f.evaluator.Evaluate(req)

	if decision.Allow || decision.Outcome != authz.OutcomeLookupError {
		t.Fatalf("expected fail-closed lookup error, got %+v", decision)
	}
	if f.store.Len() != 0 {
		t.Error("lookup failure must not be cached")
	}
}

func TestEvaluator_BodyStillReadableAfterGrant(t *testing.T) {
	f := newGateFixture(t, map[cache.Key]bool{cache.NewKey("T3", "U3"): true})
	payload := `{"teamId":"T3","title":"Roadmap"}`

	req := withUser(httptest.NewRequest(http.MethodPut, "/api/projects/7", strings.NewReader(payload)), "U3")
	if decision := f.evaluator.Evaluate(req); !decision.Allow {
		t.Fatalf("expected grant, got %+v", decision)
	}

	got, _ := io.ReadAll(req.Body)
	if string(got) != payload {
		t.Errorf("expected downstream to read the full body, got %s", got)
	}
}
