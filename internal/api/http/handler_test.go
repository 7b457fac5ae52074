package http

import (
	"cidrvend/internal/api/http/identity"
	"cidrvend/internal/api/http/logger"
	"cidrvend/internal/core/vending"
	"cidrvend/internal/ipam"
	"cidrvend/internal/metrics"
	"cidrvend/internal/store/allocation"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, master string) http.Handler {
	t.Helper()
	return newTestRouterWithConfig(t, master, RouterConfig{})
}

func newTestRouterWithConfig(t *testing.T, master string, cfg RouterConfig) http.Handler {
	t.Helper()

	pool, err := ipam.NewPool(master, 24, 26)
	require.NoError(t, err)

	store, err := allocation.NewBoltStore(filepath.Join(t.TempDir(), "allocations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewTestClock(time.Date(2020, 9, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.New()
	svc := vending.NewVendingService(ipam.NewIpamManager(store, pool, clk, zap.NewNop()), m, zap.NewNop())

	cfg.Metrics = m.Handler()
	return NewApiRouter(NewRequestHandler(svc), cfg)
}

func do(t *testing.T, h http.Handler, method string, target string, account string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if account != "" {
		req = req.WithContext(identity.WithAccount(req.Context(), account, ""))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestAllocateBindRelease(t *testing.T) {
	h := newTestRouter(t, "10.0.0.0/12")

	rec, body := do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10.0.0.0/24", body["vpcCidrBlock"])
	require.Equal(t, "acct-A", body["accountId"])
	require.Equal(t, "eu-west-1", body["vpcRegion"])
	require.Equal(t, "2020-09-01 12:00:00.000000", body["createdAt"])
	require.Equal(t, "10.0.0.192/26", body["subnet3CidrBlock"])
	require.NotContains(t, body, "vpcId")

	rec, body = do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-B")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "10.0.1.0/24", body["vpcCidrBlock"])

	rec, body = do(t, h, http.MethodPatch, "/vpc?cidr_block=10.0.0.0/24&vpc_id=vpc-1", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "vpc-1", body["vpcId"])

	rec, body = do(t, h, http.MethodPatch, "/vpc?cidr_block=10.0.0.0/24&vpc_id=vpc-2", "acct-B")
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	require.Equal(t, "fail", body["status"])

	rec, body = do(t, h, http.MethodGet, "/vpc?cidr_block=10.0.0.0/24", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "vpc-1", body["vpcId"])

	rec, _ = do(t, h, http.MethodDelete, "/vpc?cidr_block=10.0.0.0/24", "acct-B")
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec, body = do(t, h, http.MethodDelete, "/vpc?cidr_block=10.0.0.0/24", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body)

	rec, _ = do(t, h, http.MethodDelete, "/vpc?cidr_block=10.0.0.0/24", "acct-A")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPatch, "/vpc?cidr_block=10.0.0.0/24&vpc_id=vpc-1", "acct-A")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAllocateExhausted(t *testing.T) {
	h := newTestRouter(t, "10.0.0.0/24")

	rec, _ := do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-A")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "fail", body["status"])
}

type auditSink struct {
	events []logger.Event
}

func (s *auditSink) Write(event logger.Event) {
	s.events = append(s.events, event)
}

func TestAuditRecordsErrorKind(t *testing.T) {
	sink := &auditSink{}
	h := newTestRouterWithConfig(t, "10.0.0.0/12", RouterConfig{AuditLogger: sink, Component: "cidrvend"})

	rec, _ := do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-A")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/vpc?cidr_block=10.0.0.0/24", "acct-B")
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	require.Len(t, sink.events, 2)
	require.NotContains(t, sink.events[0].Extra, "error_kind")

	denied := sink.events[1]
	require.Equal(t, "deny", denied.Result.Status)
	require.Equal(t, "OwnershipMismatch", denied.Extra["error_kind"])
	require.Equal(t, "acct-B", denied.Actor.AccountId)
}

func TestRequestValidation(t *testing.T) {
	h := newTestRouter(t, "10.0.0.0/12")

	cases := []struct {
		name    string
		method  string
		target  string
		account string
		expect  int
	}{
		{name: "no identity", method: http.MethodPost, target: "/vpc?region=eu-west-1", expect: http.StatusUnauthorized},
		{name: "no region", method: http.MethodPost, target: "/vpc", account: "acct-A", expect: http.StatusBadRequest},
		{name: "no vpc id", method: http.MethodPatch, target: "/vpc?cidr_block=10.0.0.0/24", account: "acct-A", expect: http.StatusBadRequest},
		{name: "no block", method: http.MethodDelete, target: "/vpc", account: "acct-A", expect: http.StatusBadRequest},
		{name: "bad block", method: http.MethodDelete, target: "/vpc?cidr_block=10.0.0.0/33", account: "acct-A", expect: http.StatusBadRequest},
		{name: "host bits", method: http.MethodGet, target: "/vpc?cidr_block=10.0.0.1/24", account: "acct-A", expect: http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, h, tc.method, tc.target, tc.account)
			require.Equal(t, tc.expect, rec.Code)
			require.Equal(t, "fail", body["status"])
		})
	}
}

func TestIdentityNotFromHeaders(t *testing.T) {
	h := newTestRouter(t, "10.0.0.0/12")

	req := httptest.NewRequest(http.MethodPost, "/vpc?region=eu-west-1&accountId=acct-A", nil)
	req.Header.Set("X-Account-Id", "acct-A")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingService struct {
	vending.VendingServiceHandler
	err error
}

func (f failingService) Allocate(ctx context.Context, param vending.ServiceAllocateModel) (*allocation.Record, error) {
	return nil, f.err
}

func TestStatusForStoreFailure(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect int
	}{
		{name: "transport", err: &ipam.Error{Kind: ipam.KindTransportFailure, Err: errors.New("timeout")}, expect: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), expect: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h := NewApiRouter(NewRequestHandler(failingService{err: tc.err}), RouterConfig{})
			rec, _ := do(t, h, http.MethodPost, "/vpc?region=eu-west-1", "acct-A")
			require.Equal(t, tc.expect, rec.Code)
		})
	}
}

func TestOpsRoutes(t *testing.T) {
	h := newTestRouter(t, "10.0.0.0/12")

	rec, body := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	require.Contains(t, mrec.Body.String(), "cidrvend_blocks_allocated_total")
}
