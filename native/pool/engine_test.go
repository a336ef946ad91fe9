package pool

import (
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"lendingpool/core/events"
	"lendingpool/crypto"
	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
)

var (
	poolAddr   = crypto.AddressFromLabel("test/pool")
	manager    = crypto.AddressFromLabel("test/manager")
	governance = crypto.AddressFromLabel("test/governance")
	treasury   = crypto.AddressFromLabel("test/treasury")
	originator = crypto.AddressFromLabel("test/originator")
	lender     = crypto.AddressFromLabel("test/lender")
	lender2    = crypto.AddressFromLabel("test/lender2")
	borrower   = crypto.AddressFromLabel("test/borrower")
)

type fixture struct {
	t        *testing.T
	engine   *Engine
	assets   *bank.Ledger
	shares   *bank.ShareToken
	recorder *events.Recorder
	now      time.Time
}

func testConfig() Config {
	return Config{
		PoolAddress: poolAddr,
		Manager:     manager,
		Governance:  governance,
		Treasury:    treasury,
		Originators: []crypto.Address{originator},
		Rates:       DefaultRateConfig(),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	assets := bank.NewLedger("USDC", 6)
	return newFixtureWith(t, assets, assets)
}

func newFixtureWith(t *testing.T, ledger *bank.Ledger, assets AssetLedger) *fixture {
	t.Helper()
	shares := bank.NewShareToken("lpUSDC", poolAddr)
	engine, err := NewEngine(testConfig(), assets, shares)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f := &fixture{t: t, engine: engine, assets: ledger, shares: shares, recorder: &events.Recorder{}, now: time.Now()}
	engine.SetEmitter(f.recorder)
	engine.SetNowFunc(func() time.Time { return f.now })
	return f
}

// fund mints amount to addr and approves the pool to pull it.
func (f *fixture) fund(addr crypto.Address, amount int64) {
	f.t.Helper()
	if err := f.assets.Mint(addr, bi(amount)); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	allowance := f.assets.Allowance(addr, poolAddr)
	if err := f.assets.Approve(addr, poolAddr, allowance.Add(allowance, bi(amount))); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func (f *fixture) approve(addr crypto.Address, amount int64) {
	f.t.Helper()
	if err := f.assets.Approve(addr, poolAddr, bi(amount)); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func (f *fixture) stake(amount int64) {
	f.t.Helper()
	f.fund(manager, amount)
	if _, err := f.engine.Stake(manager, bi(amount)); err != nil {
		f.t.Fatalf("stake %d: %v", amount, err)
	}
}

func (f *fixture) deposit(addr crypto.Address, amount int64) *big.Int {
	f.t.Helper()
	f.fund(addr, amount)
	shares, err := f.engine.Deposit(addr, bi(amount))
	if err != nil {
		f.t.Fatalf("deposit %d: %v", amount, err)
	}
	return shares
}

func (f *fixture) fundLoan(loanID uint64, amount int64, apr Percent) {
	f.t.Helper()
	if err := f.engine.OnOffer(originator, bi(amount)); err != nil {
		f.t.Fatalf("offer: %v", err)
	}
	if err := f.engine.OnBorrow(originator, loanID, borrower, bi(amount), apr); err != nil {
		f.t.Fatalf("borrow: %v", err)
	}
}

func (f *fixture) requireReconciled() {
	f.t.Helper()
	if err := f.engine.Reconcile(); err != nil {
		f.t.Fatalf("reconcile: %v", err)
	}
}

func requireSameStats(t *testing.T, before, after Stats) {
	t.Helper()
	amounts := map[string][2]*big.Int{
		"custody":         {before.Custody, after.Custody},
		"liquid":          {before.Liquid, after.Liquid},
		"allocated":       {before.Allocated, after.Allocated},
		"strategized":     {before.Strategized, after.Strategized},
		"total fund":      {before.TotalFund, after.TotalFund},
		"manager revenue": {before.ManagerRevenue, after.ManagerRevenue},
		"protocol":        {before.ProtocolRevenue, after.ProtocolRevenue},
		"total shares":    {before.TotalShares, after.TotalShares},
		"staked shares":   {before.StakedShares, after.StakedShares},
		"limit":           {before.PoolFundsLimit, after.PoolFundsLimit},
	}
	for name, pair := range amounts {
		if pair[0].Cmp(pair[1]) != 0 {
			t.Fatalf("%s changed: %s -> %s", name, pair[0], pair[1])
		}
	}
	if before.AvgStrategyAPR != after.AvgStrategyAPR || before.Rates != after.Rates ||
		before.Paused != after.Paused || before.Closed != after.Closed {
		t.Fatalf("scalar state changed: %+v -> %+v", before, after)
	}
}

func TestNewEngineValidatesConfig(t *testing.T) {
	assets := bank.NewLedger("USDC", 6)
	shares := bank.NewShareToken("lpUSDC", poolAddr)
	cfg := testConfig()
	cfg.Manager = crypto.Address{}
	if _, err := NewEngine(cfg, assets, shares); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	cfg = testConfig()
	cfg.Rates.ExitFeePercent = MaxExitFeePercent + 1
	if _, err := NewEngine(cfg, assets, shares); !errors.Is(err, ErrInvalidPercent) {
		t.Fatalf("expected ErrInvalidPercent, got %v", err)
	}
	if _, err := NewEngine(testConfig(), nil, shares); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing ledger, got %v", err)
	}
	for name, mutate := range map[string]func(*Config){
		"treasury":   func(c *Config) { c.Treasury = poolAddr },
		"governance": func(c *Config) { c.Governance = poolAddr },
		"originator": func(c *Config) { c.Originators = append(c.Originators, poolAddr) },
	} {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewEngine(cfg, assets, shares); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s as pool account: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestPoolAccountCannotActAsCounterparty(t *testing.T) {
	f := newFixture(t)
	f.stake(200)
	f.deposit(lender, 1_000)
	before := f.engine.Stats()
	mark := len(f.recorder.Events())

	if _, err := f.engine.Withdraw(poolAddr, bi(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("withdraw from escrow: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.Deposit(poolAddr, bi(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deposit from custody: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.WithdrawProtocolEarnings(poolAddr); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("protocol earnings to custody: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetTreasury(governance, poolAddr); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("treasury as pool account: expected ErrInvalidConfig, got %v", err)
	}
	if err := f.engine.AuthorizeOriginator(governance, poolAddr); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("originator as pool account: expected ErrInvalidConfig, got %v", err)
	}
	if err := f.engine.OnOffer(originator, bi(100)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := f.engine.OnBorrow(originator, 1, poolAddr, bi(100), Percentage(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("borrow into custody: expected ErrUnauthorized, got %v", err)
	}

	after := f.engine.Stats()
	requireAmount(t, "staked shares", after.StakedShares, 200)
	requireAmount(t, "total shares", after.TotalShares, before.TotalShares.Int64())
	requireAmount(t, "escrow", f.shares.BalanceOf(poolAddr), 200)
	requireAmount(t, "custody", after.Custody, before.Custody.Int64())
	if got := len(f.recorder.Events()) - mark; got != 1 {
		t.Fatalf("expected only the offer event, got %d events", got)
	}
	f.requireReconciled()
}

func TestEndToEndLifecycle(t *testing.T) {
	f := newFixture(t)

	f.stake(200)
	stats := f.engine.Stats()
	requireAmount(t, "staked shares", stats.StakedShares, 200)
	requireAmount(t, "pool funds limit", stats.PoolFundsLimit, 2_000)

	minted := f.deposit(lender, 1_000)
	requireAmount(t, "minted", minted, 1_000)
	requireAmount(t, "lender shares", f.shares.BalanceOf(lender), 1_000)
	requireAmount(t, "total fund", f.engine.Stats().TotalFund, 1_200)
	requireAmount(t, "depositable", f.engine.Depositable(), 800)
	if !f.engine.IsFunctional() {
		t.Fatalf("pool should be functional above the stake target")
	}

	f.fundLoan(1, 500, Percentage(12))
	stats = f.engine.Stats()
	requireAmount(t, "strategized", stats.Strategized, 500)
	requireAmount(t, "liquid", stats.Liquid, 700)
	requireAmount(t, "custody", stats.Custody, 700)
	requireAmount(t, "borrower balance", f.assets.BalanceOf(borrower), 500)
	if stats.AvgStrategyAPR != Percentage(12) {
		t.Fatalf("expected average APR 12%%, got %s", stats.AvgStrategyAPR)
	}

	f.fund(borrower, 50)
	f.approve(borrower, 550)
	before := f.engine.Stats()
	split, err := f.engine.OnRepay(originator, Repayment{
		LoanID:          1,
		Borrower:        borrower,
		Payer:           borrower,
		APR:             Percentage(12),
		TransferAmount:  bi(550),
		PaymentAmount:   bi(550),
		InterestPayable: bi(50),
	})
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	requireAmount(t, "protocol cut", split.Protocol, 5)
	requireAmount(t, "manager cut", split.Manager, 3)
	requireAmount(t, "lender yield", split.Lender, 42)

	stats = f.engine.Stats()
	requireAmount(t, "strategized after repay", stats.Strategized, 0)
	growth := new(big.Int).Sub(stats.TotalFund, before.TotalFund)
	requireAmount(t, "fund growth", growth, 42)
	requireAmount(t, "manager revenue", f.engine.ManagerRevenue(), 3)
	requireAmount(t, "treasury earnings", f.engine.ProtocolEarnings(treasury), 5)
	requireAmount(t, "custody after repay", stats.Custody, 1_250)
	if stats.AvgStrategyAPR != 0 {
		t.Fatalf("expected average APR to reset, got %s", stats.AvgStrategyAPR)
	}
	requireAmount(t, "lender share value", f.engine.Withdrawable(lender), 1_035)
	f.requireReconciled()

	paid, err := f.engine.WithdrawProtocolEarnings(treasury)
	if err != nil {
		t.Fatalf("withdraw protocol earnings: %v", err)
	}
	requireAmount(t, "protocol payout", paid, 5)
	if _, err := f.engine.WithdrawProtocolEarnings(treasury); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected ErrNothingToWithdraw, got %v", err)
	}
	if _, err := f.engine.WithdrawManagerRevenue(lender); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	paid, err = f.engine.WithdrawManagerRevenue(manager)
	if err != nil {
		t.Fatalf("withdraw manager revenue: %v", err)
	}
	requireAmount(t, "manager payout", paid, 3)
	f.requireReconciled()

	want := []string{
		EventTypeStaked,
		EventTypeDeposited,
		EventTypeOfferAllocated,
		EventTypeLoanFunded,
		EventTypeLoanRepaid,
		EventTypeProtocolEarningsWithdrawn,
		EventTypeManagerRevenueWithdrawn,
	}
	if got := f.recorder.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events:\n got %v\nwant %v", got, want)
	}
	evt, ok := Payload(f.recorder.Events()[4])
	if !ok || evt.Attributes["lenderYield"] != "42" || evt.Attributes["loanId"] != "1" {
		t.Fatalf("unexpected repay payload %+v", evt)
	}
}

func TestDepositRules(t *testing.T) {
	f := newFixture(t)
	f.fund(lender, 100)
	if _, err := f.engine.Deposit(lender, bi(100)); !errors.Is(err, ErrDepositLimit) {
		t.Fatalf("expected ErrDepositLimit without stake, got %v", err)
	}
	f.fund(manager, 100)
	if _, err := f.engine.Deposit(manager, bi(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected manager deposit to be rejected, got %v", err)
	}
	if _, err := f.engine.Stake(lender, bi(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected lender stake to be rejected, got %v", err)
	}
	f.stake(10)
	if _, err := f.engine.Deposit(lender, bi(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.Deposit(lender, bi(91)); !errors.Is(err, ErrDepositLimit) {
		t.Fatalf("expected ErrDepositLimit above limit, got %v", err)
	}
	if _, err := f.engine.Deposit(lender, bi(90)); err != nil {
		t.Fatalf("deposit at the limit: %v", err)
	}
	requireAmount(t, "depositable", f.engine.Depositable(), 0)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.stake(200)
	f.deposit(lender, 1_000)

	value := f.engine.Withdrawable(lender)
	requireAmount(t, "withdrawable", value, 1_000)
	paid, err := f.engine.Withdraw(lender, value)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "payout", paid, 995)
	requireAmount(t, "lender wallet", f.assets.BalanceOf(lender), 995)
	requireAmount(t, "lender shares", f.shares.BalanceOf(lender), 0)
	// The fee stays in the fund and accrues to the remaining holders.
	requireAmount(t, "total fund", f.engine.Stats().TotalFund, 205)
	requireAmount(t, "stake value", f.engine.StakedBalance(), 205)
	f.requireReconciled()

	if _, err := f.engine.Withdraw(lender, bi(1)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if _, err := f.engine.Withdraw(manager, bi(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected manager withdraw to be rejected, got %v", err)
	}
}

func TestWithdrawLimitedByLiquidity(t *testing.T) {
	f := newFixture(t)
	f.stake(100)
	f.deposit(lender, 900)
	f.fundLoan(1, 800, Percentage(10))
	if _, err := f.engine.Withdraw(lender, bi(300)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	requireAmount(t, "withdrawable", f.engine.Withdrawable(lender), 200)
}

func TestOnBorrowTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.stake(100)
	f.deposit(lender, 900)
	if err := f.engine.OnOffer(originator, bi(600)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := f.engine.OnBorrow(originator, 7, borrower, bi(300), Percentage(10)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	before := f.engine.Stats()
	beforeEvents := len(f.recorder.Events())
	err := f.engine.OnBorrow(originator, 7, borrower, bi(300), Percentage(10))
	if !errors.Is(err, ErrLoanAlreadyFunded) {
		t.Fatalf("expected ErrLoanAlreadyFunded, got %v", err)
	}
	requireSameStats(t, before, f.engine.Stats())
	requireAmount(t, "borrower balance", f.assets.BalanceOf(borrower), 300)
	if len(f.recorder.Events()) != beforeEvents {
		t.Fatalf("failed borrow emitted events")
	}
	if status := f.engine.LoanStatus(originator, 7); status != LoanStatusFunded {
		t.Fatalf("unexpected loan status %s", status)
	}

	other := crypto.AddressFromLabel("test/other-originator")
	if err := f.engine.OnBorrow(other, 8, borrower, bi(100), Percentage(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown originator, got %v", err)
	}
	if err := f.engine.OnBorrow(originator, 9, borrower, bi(400), Percentage(10)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected borrow above the allocation to fail, got %v", err)
	}
}

func TestOfferRespectsLiquidityTarget(t *testing.T) {
	f := newFixture(t)
	f.stake(100)
	f.deposit(lender, 900)
	if err := f.engine.SetTargetLiquidityPercent(manager, Percentage(30)); err != nil {
		t.Fatalf("set liquidity target: %v", err)
	}
	requireAmount(t, "strategy liquidity", f.engine.StrategyLiquidity(), 700)
	if err := f.engine.OnOffer(originator, bi(701)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if err := f.engine.OnOffer(originator, bi(500)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := f.engine.OnOfferUpdate(originator, bi(500), bi(701)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected offer increase above liquidity to fail, got %v", err)
	}
	if err := f.engine.OnOfferUpdate(originator, bi(500), bi(700)); err != nil {
		t.Fatalf("offer increase: %v", err)
	}
	requireAmount(t, "allocated", f.engine.Stats().Allocated, 700)
	if err := f.engine.OnOfferUpdate(originator, bi(700), bi(0)); err != nil {
		t.Fatalf("offer cancel: %v", err)
	}
	stats := f.engine.Stats()
	requireAmount(t, "allocated after cancel", stats.Allocated, 0)
	requireAmount(t, "liquid after cancel", stats.Liquid, 1_000)
}

func TestReentrantCallRejected(t *testing.T) {
	f := newFixture(t)
	f.stake(200)
	f.deposit(lender, 900)
	f.fund(lender2, 10)
	if err := f.engine.OnOffer(originator, bi(500)); err != nil {
		t.Fatalf("offer: %v", err)
	}

	var reentryErr error
	var observed *big.Int
	f.assets.SetTransferHook(func(from, to crypto.Address, amount *big.Int) {
		if to != borrower {
			return
		}
		observed = f.engine.Stats().Strategized
		_, reentryErr = f.engine.Deposit(lender2, bi(10))
	})
	if err := f.engine.OnBorrow(originator, 1, borrower, bi(500), Percentage(10)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if !errors.Is(reentryErr, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", reentryErr)
	}
	requireAmount(t, "strategized observed during transfer", observed, 0)
	requireAmount(t, "strategized after commit", f.engine.Stats().Strategized, 500)
	requireAmount(t, "reentrant depositor shares", f.shares.BalanceOf(lender2), 0)

	f.assets.SetTransferHook(nil)
	if _, err := f.engine.Deposit(lender2, bi(10)); err != nil {
		t.Fatalf("deposit after the guard released: %v", err)
	}
}

func TestPanicReleasesGuard(t *testing.T) {
	f := newFixture(t)
	f.stake(100)
	f.deposit(lender, 900)
	before := f.engine.Stats()
	mark := len(f.recorder.Events())

	f.assets.SetTransferHook(func(from, to crypto.Address, amount *big.Int) {
		if to == lender {
			panic("custody backend failed")
		}
	})
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected the collaborator panic to propagate")
			}
		}()
		_, _ = f.engine.Withdraw(lender, bi(100))
	}()
	f.assets.SetTransferHook(nil)

	requireSameStats(t, before, f.engine.Stats())
	requireAmount(t, "lender shares restored", f.shares.BalanceOf(lender), 900)
	requireAmount(t, "lender wallet restored", f.assets.BalanceOf(lender), 0)
	if len(f.recorder.Events()) != mark {
		t.Fatalf("panicked withdrawal emitted events")
	}
	if _, err := f.engine.Withdraw(lender, bi(100)); err != nil {
		t.Fatalf("withdraw after panic: %v", err)
	}
	f.requireReconciled()
}

var errTransferRejected = errors.New("transfer rejected")

// rejectingLedger refuses transfers to one account.
type rejectingLedger struct {
	*bank.Ledger
	rejectTo crypto.Address
}

func (r *rejectingLedger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if to == r.rejectTo {
		return errTransferRejected
	}
	return r.Ledger.Transfer(from, to, amount)
}

func TestTransferFailureRollsBack(t *testing.T) {
	ledger := bank.NewLedger("USDC", 6)
	rejecting := &rejectingLedger{Ledger: ledger}
	f := newFixtureWith(t, ledger, rejecting)
	f.stake(100)
	f.deposit(lender, 900)

	rejecting.rejectTo = lender
	before := f.engine.Stats()
	beforeEvents := len(f.recorder.Events())
	if _, err := f.engine.Withdraw(lender, bi(500)); !errors.Is(err, errTransferRejected) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	requireSameStats(t, before, f.engine.Stats())
	requireAmount(t, "lender shares restored", f.shares.BalanceOf(lender), 900)
	requireAmount(t, "share supply restored", f.shares.TotalSupply(), 1_000)
	if len(f.recorder.Events()) != beforeEvents {
		t.Fatalf("failed withdrawal emitted events")
	}
	f.requireReconciled()

	rejecting.rejectTo = borrower
	if err := f.engine.OnOffer(originator, bi(400)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := f.engine.OnBorrow(originator, 1, borrower, bi(400), Percentage(10)); !errors.Is(err, errTransferRejected) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if status := f.engine.LoanStatus(originator, 1); status != LoanStatusNone {
		t.Fatalf("failed borrow left loan %s", status)
	}
	requireAmount(t, "allocation kept", f.engine.Stats().Allocated, 400)
}

func TestUnstakeKeepsTargetStake(t *testing.T) {
	f := newFixture(t)
	f.stake(2_000)
	f.deposit(lender, 9_000)

	requireAmount(t, "unstakable", f.engine.Unstakable(), 1_000)
	if _, err := f.engine.Unstake(manager, bi(1_001)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := f.engine.Unstake(lender, bi(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	paid, err := f.engine.Unstake(manager, bi(1_000))
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	requireAmount(t, "unstake payout", paid, 995)
	requireAmount(t, "manager wallet", f.assets.BalanceOf(manager), 995)
	stats := f.engine.Stats()
	requireAmount(t, "staked shares", stats.StakedShares, 1_000)
	requireAmount(t, "total shares", stats.TotalShares, 10_000)
	if stats.StakeFraction() < stats.Rates.TargetStakePercent {
		t.Fatalf("unstake pushed stake below target: %s", stats.StakeFraction())
	}
	if !f.engine.IsFunctional() {
		t.Fatalf("pool should remain functional at the target")
	}
	requireAmount(t, "limit follows stake", stats.PoolFundsLimit, 10_005)
	requireAmount(t, "nothing left to unstake", f.engine.Unstakable(), 0)
	f.requireReconciled()

	if err := f.engine.Close(manager); err != nil {
		t.Fatalf("close: %v", err)
	}
	requireAmount(t, "closed pool releases the whole stake", f.engine.Unstakable(), 1_000)
	requireAmount(t, "closed pool depositable", f.engine.Depositable(), 0)
	requireAmount(t, "closed pool stakable", f.engine.Stakable(), 0)
	f.fund(lender, 10)
	if _, err := f.engine.Deposit(lender, bi(10)); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if _, err := f.engine.Withdraw(lender, bi(100)); err != nil {
		t.Fatalf("withdrawals stay open after close: %v", err)
	}
}

func TestPauseBlocksEntries(t *testing.T) {
	f := newFixture(t)
	f.stake(100)
	f.deposit(lender, 500)

	if err := f.engine.Pause(lender); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Pause(governance); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.fund(lender, 10)
	if _, err := f.engine.Deposit(lender, bi(10)); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused, got %v", err)
	}
	if _, err := f.engine.Withdraw(lender, bi(10)); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused, got %v", err)
	}
	requireAmount(t, "paused depositable", f.engine.Depositable(), 0)
	requireAmount(t, "paused unstakable", f.engine.Unstakable(), 0)
	if f.engine.IsFunctional() {
		t.Fatalf("paused pool reported functional")
	}
	if err := f.engine.Unpause(governance); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := f.engine.Deposit(lender, bi(10)); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}

	f.engine.SetPauses(nativecommon.NewPauseSet(ModuleName))
	if _, err := f.engine.Withdraw(lender, bi(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if f.engine.IsFunctional() {
		t.Fatalf("operator-paused pool reported functional")
	}
}
