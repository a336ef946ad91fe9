package pool

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"lendingpool/core/events"
	"lendingpool/core/types"
	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
)

const moduleName = "pool"

// ModuleName is the key the engine consults in its PauseView.
const ModuleName = moduleName

// Engine is the accounting service of a single lending pool. It owns the pool
// ledger and orchestrates the share ledger, the value buckets, the yield split
// and the loss waterfall for every user operation and loan settlement hook.
//
// Every mutating method runs as one atomic unit: either it fully applies or
// the ledger and every journaled collaborator are restored. Engine does not
// serialize goroutines; callers must not invoke it concurrently.
type Engine struct {
	poolAddress crypto.Address
	manager     crypto.Address
	governance  crypto.Address
	grace       time.Duration

	assets   AssetLedger
	shares   ShareIssuer
	journals []Journal
	policy   Policy
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	nowFn    func() time.Time

	state *ledger
	busy  atomic.Bool
}

// NewEngine constructs a pool engine with zeroed balances. assets and shares
// are reverted on failed operations when they implement Journal.
func NewEngine(cfg Config, assets AssetLedger, shares ShareIssuer) (*Engine, error) {
	if assets == nil || shares == nil {
		return nil, fmt.Errorf("%w: asset ledger and share issuer required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grace := cfg.ManagerInactivityGrace
	if grace <= 0 {
		grace = DefaultManagerInactivityGrace
	}
	e := &Engine{
		poolAddress: cfg.PoolAddress,
		manager:     cfg.Manager,
		governance:  cfg.Governance,
		grace:       grace,
		assets:      assets,
		shares:      shares,
		policy:      DefaultPolicy{},
		emitter:     events.NoopEmitter{},
		nowFn:       time.Now,
	}
	for _, collaborator := range []any{assets, shares} {
		if j, ok := collaborator.(Journal); ok {
			e.journals = append(e.journals, j)
		}
	}
	e.state = newLedger(cfg, e.now())
	e.state.refreshLimit()
	return e, nil
}

// SetPolicy replaces the health and eligibility policy. A nil policy restores
// DefaultPolicy.
func (e *Engine) SetPolicy(p Policy) {
	if e == nil {
		return
	}
	if p == nil {
		p = DefaultPolicy{}
	}
	e.policy = p
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the sink for events of committed operations.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for manager activity tracking.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// PoolAddress returns the custody account of the pool.
func (e *Engine) PoolAddress() crypto.Address { return e.poolAddress }

// Manager returns the pool manager.
func (e *Engine) Manager() crypto.Address { return e.manager }

// Governance returns the governance identity of the pool.
func (e *Engine) Governance() crypto.Address { return e.governance }

func (e *Engine) now() int64 { return e.nowFn().Unix() }

// txn is the working copy of the ledger handed to an operation, together with
// the events it will publish once it commits.
type txn struct {
	*ledger
	engine *Engine
	events []*types.Event
}

func (t *txn) emit(evt *types.Event) {
	if evt != nil {
		t.events = append(t.events, evt)
	}
}

// view exposes the working ledger to the policy.
func (t *txn) view() View { return ledgerView{engine: t.engine, st: t.ledger} }

// touchManager records manager activity when caller is the manager.
func (t *txn) touchManager(caller crypto.Address) {
	if caller == t.engine.manager {
		t.managerLastActive = t.engine.now()
	}
}

// transact runs fn against a clone of the ledger under the reentrancy guard.
// The clone replaces the ledger only when fn and the invariant checks
// succeed; otherwise journaled collaborators are reverted. A reentrant call
// from inside fn therefore observes the pre-operation ledger and fails with
// ErrReentrantCall if it tries to mutate. Events are emitted after the guard
// is released.
func (e *Engine) transact(fn func(tx *txn) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	pending, err := e.apply(fn)
	if err != nil {
		return err
	}
	for _, evt := range pending {
		e.emitter.Emit(WrapEvent(evt))
	}
	return nil
}

// apply owns the guard taken by transact. A panic in fn or a collaborator
// reverts the journals and releases the guard before it propagates.
func (e *Engine) apply(fn func(tx *txn) error) ([]*types.Event, error) {
	defer e.busy.Store(false)
	snapshots := make([]int, len(e.journals))
	for i, j := range e.journals {
		snapshots[i] = j.Snapshot()
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		for i := len(e.journals) - 1; i >= 0; i-- {
			e.journals[i].RevertToSnapshot(snapshots[i])
		}
	}()

	tx := &txn{ledger: e.state.clone(), engine: e}
	if err := fn(tx); err != nil {
		return nil, err
	}
	tx.refreshLimit()
	if err := tx.checkInvariants(); err != nil {
		return nil, err
	}
	for i := len(e.journals) - 1; i >= 0; i-- {
		if c, ok := e.journals[i].(Committer); ok {
			c.DiscardSnapshot(snapshots[i])
		}
	}
	committed = true
	e.state = tx.ledger
	return tx.events, nil
}

// guardActive rejects operations while the operator pause switch or the
// pool's own pause flag is set.
func (e *Engine) guardActive(st *ledger) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if st.paused {
		return ErrPoolPaused
	}
	return nil
}

// guardOpen additionally rejects operations once the pool is closed.
func (e *Engine) guardOpen(st *ledger) error {
	if err := e.guardActive(st); err != nil {
		return err
	}
	if st.closed {
		return ErrPoolClosed
	}
	return nil
}

func (e *Engine) isPaused(st *ledger) bool {
	return st.paused || nativecommon.Guard(e.pauses, moduleName) != nil
}

func requirePositive(amount *big.Int) error {
	if !isPositive(amount) {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) requireOriginator(st *ledger, caller crypto.Address) error {
	if !st.originators[caller] {
		return fmt.Errorf("%w: %s is not a loan originator", ErrUnauthorized, caller)
	}
	return nil
}

func (e *Engine) requireManager(caller crypto.Address) error {
	if caller != e.manager {
		return fmt.Errorf("%w: %s is not the manager", ErrUnauthorized, caller)
	}
	return nil
}

// requireExternal admits lender-side callers: neither the manager nor the
// pool's custody account, whose share balance is the stake escrow.
func (e *Engine) requireExternal(caller crypto.Address) error {
	if caller == e.manager {
		return fmt.Errorf("%w: manager must use stake operations", ErrUnauthorized)
	}
	return e.requireNotPool(caller)
}

func (e *Engine) requireNotPool(caller crypto.Address) error {
	if caller == e.poolAddress {
		return fmt.Errorf("%w: pool account %s cannot act as a counterparty", ErrUnauthorized, caller)
	}
	return nil
}

func (e *Engine) requireGovernance(caller crypto.Address) error {
	if caller != e.governance {
		return fmt.Errorf("%w: %s is not governance", ErrUnauthorized, caller)
	}
	return nil
}

// requireManagerOrDelegate admits the manager, or while the manager is
// inactive, any caller the policy authorizes.
func (e *Engine) requireManagerOrDelegate(tx *txn, caller crypto.Address) error {
	if caller == e.manager {
		return nil
	}
	if e.policy.AuthorizedWhenManagerInactive(tx.view(), caller) {
		return nil
	}
	return fmt.Errorf("%w: %s may not act for the manager", ErrUnauthorized, caller)
}

func (e *Engine) managerInactive(st *ledger) bool {
	idle := e.now() - st.managerLastActive
	return idle > int64(e.grace/time.Second)
}

// ledgerView is the View of one ledger version.
type ledgerView struct {
	engine *Engine
	st     *ledger
}

var _ View = ledgerView{}

func (v ledgerView) Stats() Stats { return statsOf(v.st) }
func (v ledgerView) Governance() crypto.Address { return v.engine.governance }
func (v ledgerView) IsManagerInactive() bool { return v.engine.managerInactive(v.st) }
func (v ledgerView) SharesOf(addr crypto.Address) *big.Int { return v.engine.sharesOf(addr) }

func (e *Engine) sharesOf(addr crypto.Address) *big.Int {
	balance := e.shares.BalanceOf(addr)
	if balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

func statsOf(st *ledger) Stats {
	return Stats{
		Custody:           newBigInt(st.balance.Custody),
		Liquid:            newBigInt(st.balance.Liquid),
		Allocated:         newBigInt(st.balance.Allocated),
		Strategized:       newBigInt(st.balance.Strategized),
		TotalFund:         newBigInt(st.balance.TotalFund),
		ManagerRevenue:    newBigInt(st.balance.ManagerRevenue),
		ProtocolRevenue:   st.balance.ProtocolRevenueTotal(),
		TotalShares:       newBigInt(st.shares.Total),
		StakedShares:      newBigInt(st.shares.Staked),
		PoolFundsLimit:    newBigInt(st.poolFundsLimit),
		AvgStrategyAPR:    st.avgStrategyAPR,
		Rates:             st.rates,
		Paused:            st.paused,
		Closed:            st.closed,
		ManagerLastActive: st.managerLastActive,
	}
}
