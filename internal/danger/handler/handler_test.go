package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famledger/internal/audit"
	"famledger/internal/danger"
	"famledger/internal/membership"
	"famledger/internal/permission"
	id "famledger/pkg/domain"
	"famledger/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	router   chi.Router
	familyID id.FamilyID

	president id.UserID
	treasurer id.UserID
	member    id.UserID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	members := membership.NewInMemory()
	matrix, err := permission.New(members, permission.NewInMemory())
	require.NoError(t, err)
	trail, err := audit.NewTrail(audit.NewInMemory())
	require.NoError(t, err)
	quorum, err := danger.NewQuorumResolver(members)
	require.NoError(t, err)

	registry := danger.NewRegistry()
	for _, kind := range danger.Kinds() {
		require.NoError(t, registry.Register(kind, danger.ExecutorFunc(
			func(context.Context, id.FamilyID, json.RawMessage) error { return nil })))
	}

	workflow, err := danger.NewWorkflow(danger.NewInMemoryStore(), matrix, quorum, registry, trail)
	require.NoError(t, err)

	router := chi.NewRouter()
	New(workflow, testLogger()).Register(router)

	e := &env{router: router, familyID: id.NewFamilyID()}
	e.president = seedMember(t, members, e.familyID, membership.RolePresident)
	e.treasurer = seedMember(t, members, e.familyID, membership.RoleTreasurer)
	e.member = seedMember(t, members, e.familyID, membership.RoleMember)
	return e
}

func seedMember(t *testing.T, members *membership.InMemory, familyID id.FamilyID, role membership.Role) id.UserID {
	t.Helper()
	userID := id.NewUserID()
	require.NoError(t, members.Upsert(context.Background(), membership.Membership{
		UserID:   userID,
		FamilyID: familyID,
		Role:     role,
		Status:   membership.StatusActive,
		JoinedAt: time.Now(),
	}))
	return userID
}

// do dispatches a request through the router with the actor and request time
// injected the way the middleware chain would.
func (e *env) do(t *testing.T, req *http.Request, actorID id.UserID, at time.Time) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req.WithContext(testutil.ActorContextAt(actorID, at)))
	return rec
}

func (e *env) basePath() string {
	return "/families/" + e.familyID.String() + "/danger-actions"
}

func TestHandlerCreate(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("creates a pending request", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", CreateRequest{
			Kind:   "reset_leaderboard",
			Reason: "new season",
		})
		rec := e.do(t, req, e.member, now)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp RequestResponse
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Equal(t, e.member.String(), resp.RequestedBy)
		assert.Len(t, resp.RequiredApprovers, 2)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", map[string]any{
			"kind": "reset_leaderboard", "surprise": true,
		})
		rec := e.do(t, req, e.member, now)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an invalid family id", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/families/not-a-uuid/danger-actions/", CreateRequest{
			Kind:   "reset_leaderboard",
			Reason: "new season",
		})
		rec := e.do(t, req, e.member, now)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires an authenticated actor", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", CreateRequest{
			Kind:   "reset_leaderboard",
			Reason: "new season",
		})
		rec := e.do(t, req, id.UserID{}, now)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandlerLifecycle(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	create := testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", CreateRequest{
		Kind:   "delete_group",
		Reason: "winding down",
	})
	rec := e.do(t, create, e.member, now)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created RequestResponse
	testutil.DecodeJSON(t, rec, &created)
	path := e.basePath() + "/" + created.ID

	t.Run("approvals accumulate until the quorum completes", func(t *testing.T) {
		rec := e.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/approve", DecisionRequest{}), e.president, now)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp RequestResponse
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "PENDING", resp.Status)

		rec = e.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/approve", DecisionRequest{Reason: "looks right"}), e.treasurer, now)
		require.Equal(t, http.StatusOK, rec.Code)
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "APPROVED", resp.Status)
		require.NotNil(t, resp.CoolingEndsAt)
	})

	t.Run("execution during cooling returns a conflict", func(t *testing.T) {
		rec := e.do(t, testutil.NewRequest(t, http.MethodPost, path+"/execute"), e.president, now.Add(time.Hour))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("execution after cooling succeeds", func(t *testing.T) {
		rec := e.do(t, testutil.NewRequest(t, http.MethodPost, path+"/execute"), e.president, now.Add(49*time.Hour))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp RequestResponse
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "EXECUTED", resp.Status)
	})
}

func TestHandlerReject(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	create := testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", CreateRequest{
		Kind:   "override_contribution",
		Reason: "import glitch",
	})
	rec := e.do(t, create, e.member, now)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created RequestResponse
	testutil.DecodeJSON(t, rec, &created)
	path := e.basePath() + "/" + created.ID

	t.Run("a reject without a reason is invalid", func(t *testing.T) {
		rec := e.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/reject", DecisionRequest{}), e.president, now)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("a single rejection terminates the request", func(t *testing.T) {
		rec := e.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/reject", DecisionRequest{Reason: "no glitch found"}), e.president, now)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp RequestResponse
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "REJECTED", resp.Status)
		assert.Equal(t, "no glitch found", resp.RejectionReason)
	})
}

func TestHandlerList(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	rec := e.do(t, testutil.NewJSONRequest(t, http.MethodPost, e.basePath()+"/", CreateRequest{
		Kind:   "reset_leaderboard",
		Reason: "new season",
	}), e.member, now)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("lists the family requests", func(t *testing.T) {
		rec := e.do(t, testutil.NewRequest(t, http.MethodGet, e.basePath()+"/"), e.member, now)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp []RequestResponse
		testutil.DecodeJSON(t, rec, &resp)
		assert.Len(t, resp, 1)
	})

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		rec := e.do(t, testutil.NewRequest(t, http.MethodGet, e.basePath()+"/?status=SIMMERING"), e.member, now)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing requests are not found", func(t *testing.T) {
		rec := e.do(t, testutil.NewRequest(t, http.MethodGet, e.basePath()+"/"+id.NewActionRequestID().String()), e.member, now)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
