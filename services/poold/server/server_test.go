package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lendingpool/config"
	"lendingpool/core/events"
	"lendingpool/crypto"
	"lendingpool/native/pool"
	"lendingpool/observability"
	"lendingpool/services/poold/journal"
	"lendingpool/services/poold/service"
	"lendingpool/storage"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "poold-test"
)

var (
	manager    = crypto.AddressFromLabel("pool/test/manager")
	governance = crypto.AddressFromLabel("pool/test/governance")
	treasury   = crypto.AddressFromLabel("pool/test/treasury")
	originator = crypto.AddressFromLabel("pool/test/originator")
	lender     = crypto.AddressFromLabel("test/lender")
	borrower   = crypto.AddressFromLabel("test/borrower")
)

type harness struct {
	t       *testing.T
	handler http.Handler
	svc     *service.Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, journal.AutoMigrate(db))
	return db
}

func newHarness(t *testing.T, limit RateLimit) *harness {
	t.Helper()
	j, err := journal.New(setupTestDB(t), "test", nil)
	require.NoError(t, err)
	svc, err := service.New(service.Options{
		Pool:     config.Default("test"),
		DB:       storage.NewMemDB(),
		Emitters: []events.Emitter{j, observability.Events().Emitter("test")},
		Faucet:   true,
	})
	require.NoError(t, err)
	if limit.RequestsPerMinute == 0 {
		limit = RateLimit{RequestsPerMinute: 6000, Burst: 1000}
	}
	srv := New(Config{
		Service:   svc,
		Journal:   j,
		Auth:      AuthConfig{HMACSecret: testSecret, Issuer: testIssuer},
		RateLimit: limit,
	})
	return &harness{t: t, handler: srv.Handler(), svc: svc}
}

func token(t *testing.T, subject crypto.Address, issuer string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(caller crypto.Address, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Authorization", "Bearer "+token(h.t, caller, testIssuer, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) ok(caller crypto.Address, method, path string, body any, out any) {
	h.t.Helper()
	rec := h.do(caller, method, path, body)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func (h *harness) fund(addr crypto.Address, amount string) {
	h.t.Helper()
	h.ok(addr, http.MethodPost, "/v1/assets/faucet", amountRequest{Amount: amount}, nil)
	h.ok(addr, http.MethodPost, "/v1/assets/approve", amountRequest{Amount: amount}, nil)
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t, RateLimit{})
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, RateLimit{})
	cases := map[string]string{
		"missing":      "",
		"garbage":      "Bearer not-a-token",
		"expired":      "Bearer " + token(t, lender, testIssuer, time.Now().Add(-time.Hour)),
		"wrong issuer": "Bearer " + token(t, lender, "someone-else", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/pool", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	claims := jwt.RegisteredClaims{Subject: "not-bech32", Issuer: testIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/pool", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPoolLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, RateLimit{})

	h.fund(manager, "200")
	var staked fundResponse
	h.ok(manager, http.MethodPost, "/v1/pool/stake", amountRequest{Amount: "200"}, &staked)
	require.Equal(t, "200", staked.Shares)

	h.fund(lender, "1000")
	var deposited fundResponse
	h.ok(lender, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "1000"}, &deposited)
	require.Equal(t, "1000", deposited.Shares)

	var summary poolView
	h.ok(lender, http.MethodGet, "/v1/pool", nil, &summary)
	require.Equal(t, "1200", summary.Stats.TotalFund)
	require.Equal(t, "2000", summary.Stats.PoolFundsLimit)
	require.Equal(t, "800", summary.Depositable)
	require.True(t, summary.Functional)
	require.Equal(t, treasury.String(), summary.Treasury)

	h.ok(originator, http.MethodPost, "/v1/loans/offers", amountRequest{Amount: "500"}, nil)
	borrow := borrowRequest{Borrower: borrower.String(), Amount: "500", APR: "12%"}
	h.ok(originator, http.MethodPost, "/v1/loans/1/borrow", borrow, nil)
	require.Equal(t, http.StatusConflict, h.do(originator, http.MethodPost, "/v1/loans/1/borrow", borrow).Code)
	require.Equal(t, http.StatusForbidden, h.do(lender, http.MethodPost, "/v1/loans/2/borrow", borrow).Code)

	h.fund(borrower, "50")
	h.ok(borrower, http.MethodPost, "/v1/assets/approve", amountRequest{Amount: "550"}, nil)
	var split repayResponse
	h.ok(originator, http.MethodPost, "/v1/loans/1/repay", repayRequest{
		Borrower:        borrower.String(),
		APR:             "12",
		PaymentAmount:   "550",
		InterestPayable: "50",
	}, &split)
	require.Equal(t, "5", split.ProtocolCut)
	require.Equal(t, "3", split.ManagerCut)
	require.Equal(t, "42", split.LenderYield)

	var loan loanResponse
	h.ok(lender, http.MethodGet, "/v1/pool/loans/"+originator.String()+"/1", nil, &loan)
	require.Equal(t, "funded", loan.Status)

	var account accountView
	h.ok(lender, http.MethodGet, "/v1/pool/accounts/"+lender.String(), nil, &account)
	require.Equal(t, "1000", account.Shares)
	require.Equal(t, "1035", account.Withdrawable)

	var paid payoutResponse
	h.ok(treasury, http.MethodPost, "/v1/pool/protocol-earnings/withdraw", nil, &paid)
	require.Equal(t, "5", paid.Amount)
	require.Equal(t, http.StatusUnprocessableEntity, h.do(treasury, http.MethodPost, "/v1/pool/protocol-earnings/withdraw", nil).Code)
	h.ok(manager, http.MethodPost, "/v1/pool/manager-revenue/withdraw", nil, &paid)
	require.Equal(t, "3", paid.Amount)

	var withdrawn fundResponse
	h.ok(lender, http.MethodPost, "/v1/pool/withdraw", amountRequest{Amount: "100"}, &withdrawn)
	require.NotEmpty(t, withdrawn.Paid)

	var journaled []eventView
	h.ok(lender, http.MethodGet, "/v1/pool/events?limit=5", nil, &journaled)
	types := make([]string, 0, len(journaled))
	for _, evt := range journaled {
		types = append(types, evt.Type)
	}
	require.Equal(t, []string{
		pool.EventTypeStaked,
		pool.EventTypeDeposited,
		pool.EventTypeOfferAllocated,
		pool.EventTypeLoanFunded,
		pool.EventTypeLoanRepaid,
	}, types)
	require.Equal(t, "42", journaled[4].Attributes["lenderYield"])

	var repaid []eventView
	h.ok(lender, http.MethodGet, "/v1/pool/events?type="+pool.EventTypeLoanRepaid, nil, &repaid)
	require.Len(t, repaid, 1)

	h.svc.View(func(a service.Accounts) { require.NoError(t, a.Engine.Reconcile()) })
}

func TestErrorStatusMapping(t *testing.T) {
	h := newHarness(t, RateLimit{})

	require.Equal(t, http.StatusBadRequest, h.do(lender, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "-5"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do(lender, http.MethodPost, "/v1/pool/deposit", map[string]string{"surprise": "1"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do(lender, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "0"}).Code)
	require.Equal(t, http.StatusUnprocessableEntity, h.do(lender, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "10"}).Code)
	require.Equal(t, http.StatusForbidden, h.do(manager, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "10"}).Code)
	require.Equal(t, http.StatusNotFound, h.do(governance, http.MethodPut, "/v1/admin/rates/unknown", rateRequest{Value: "1"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do(lender, http.MethodGet, "/v1/pool/loans/"+originator.String()+"/abc", nil).Code)

	h.ok(governance, http.MethodPost, "/v1/admin/status/pause", nil, nil)
	require.Equal(t, http.StatusLocked, h.do(lender, http.MethodPost, "/v1/pool/deposit", amountRequest{Amount: "10"}).Code)
	require.Equal(t, http.StatusForbidden, h.do(lender, http.MethodPost, "/v1/admin/status/unpause", nil).Code)
	var summary poolView
	h.ok(governance, http.MethodPost, "/v1/admin/status/unpause", nil, &summary)
	require.False(t, summary.Stats.Paused)
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t, RateLimit{})

	var rates pool.RateConfig
	h.ok(governance, http.MethodPut, "/v1/admin/rates/target-stake", rateRequest{Value: "20%"}, &rates)
	require.Equal(t, pool.Percentage(20), rates.TargetStakePercent)
	require.Equal(t, http.StatusBadRequest, h.do(governance, http.MethodPut, "/v1/admin/rates/protocol-earning", rateRequest{Value: "50%"}).Code)
	require.Equal(t, http.StatusForbidden, h.do(lender, http.MethodPut, "/v1/admin/rates/target-stake", rateRequest{Value: "20%"}).Code)
	h.ok(manager, http.MethodPut, "/v1/admin/rates/target-liquidity", rateRequest{Value: "12.5"}, &rates)
	require.Equal(t, pool.Percent(125), rates.TargetLiquidityPercent)

	next := crypto.AddressFromLabel("test/treasury2")
	h.ok(governance, http.MethodPut, "/v1/admin/treasury", treasuryRequest{Treasury: next.String()}, nil)
	second := crypto.AddressFromLabel("test/originator2")
	h.ok(governance, http.MethodPut, "/v1/admin/originators/"+second.String(), nil, nil)
	h.ok(governance, http.MethodDelete, "/v1/admin/originators/"+originator.String(), nil, nil)
	h.svc.View(func(a service.Accounts) {
		require.Equal(t, next, a.Engine.Treasury())
		require.True(t, a.Engine.IsOriginator(second))
		require.False(t, a.Engine.IsOriginator(originator))
	})

	require.Equal(t, http.StatusForbidden, h.do(manager, http.MethodPut, "/v1/admin/operator-pause", operatorPauseRequest{Paused: true}).Code)
	h.ok(governance, http.MethodPut, "/v1/admin/operator-pause", operatorPauseRequest{Paused: true}, nil)
	var summary poolView
	h.ok(lender, http.MethodGet, "/v1/pool", nil, &summary)
	require.True(t, summary.OperatorPaused)
	require.False(t, summary.Functional)
	h.fund(manager, "100")
	require.Equal(t, http.StatusLocked, h.do(manager, http.MethodPost, "/v1/pool/stake", amountRequest{Amount: "100"}).Code)
	h.ok(governance, http.MethodPut, "/v1/admin/operator-pause", operatorPauseRequest{Paused: false}, nil)
	h.ok(manager, http.MethodPost, "/v1/pool/stake", amountRequest{Amount: "100"}, nil)

	h.ok(manager, http.MethodPost, "/v1/admin/status/close", nil, &summary)
	require.True(t, summary.Stats.Closed)
	require.Equal(t, http.StatusLocked, h.do(manager, http.MethodPost, "/v1/pool/stake", amountRequest{Amount: "1"}).Code)
	h.ok(manager, http.MethodPost, "/v1/admin/status/open", nil, &summary)
	require.False(t, summary.Stats.Closed)

	var apy apyView
	h.ok(lender, http.MethodGet, "/v1/pool/apy?strategyRate=50&avgApr=10", nil, &apy)
	require.Equal(t, pool.Percentage(50), apy.StrategyRate)
	require.Equal(t, http.StatusBadRequest, h.do(lender, http.MethodGet, "/v1/pool/apy?strategyRate=x&avgApr=10", nil).Code)
}

func TestRateLimitPerCaller(t *testing.T) {
	h := newHarness(t, RateLimit{RequestsPerMinute: 1, Burst: 2})
	require.Equal(t, http.StatusOK, h.do(lender, http.MethodGet, "/v1/pool", nil).Code)
	require.Equal(t, http.StatusOK, h.do(lender, http.MethodGet, "/v1/pool", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, h.do(lender, http.MethodGet, "/v1/pool", nil).Code)
	require.Equal(t, http.StatusOK, h.do(borrower, http.MethodGet, "/v1/pool", nil).Code)
}
