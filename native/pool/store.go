package pool

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"lendingpool/crypto"
	"lendingpool/storage"
)

const (
	snapshotVersion   = 1
	snapshotKeyFormat = "native/pool/%s/snapshot"
)

var errSnapshotMismatch = errors.New("pool engine: snapshot belongs to another pool")

type storedRevenue struct {
	Beneficiary []byte
	Amount      *big.Int
}

type storedLoan struct {
	Originator []byte
	LoanID     uint64
	Status     uint64
}

type storedRates struct {
	TargetStake     uint64
	TargetLiquidity uint64
	ProtocolEarning uint64
	EarnFactor      uint64
	EarnFactorMax   uint64
	ExitFee         uint64
}

type storedLedger struct {
	Version           uint64
	Pool              []byte
	Custody           *big.Int
	Liquid            *big.Int
	Allocated         *big.Int
	Strategized       *big.Int
	TotalFund         *big.Int
	ManagerRevenue    *big.Int
	ProtocolRevenue   []storedRevenue
	TotalShares       *big.Int
	StakedShares      *big.Int
	AvgStrategyAPR    uint64
	Rates             storedRates
	Treasury          []byte
	Originators       [][]byte
	Loans             []storedLoan
	Paused            bool
	Closed            bool
	ManagerLastActive uint64
}

func encodeLedger(pool crypto.Address, st *ledger) ([]byte, error) {
	stored := storedLedger{
		Version:        snapshotVersion,
		Pool:           pool.Bytes(),
		Custody:        newBigInt(st.balance.Custody),
		Liquid:         newBigInt(st.balance.Liquid),
		Allocated:      newBigInt(st.balance.Allocated),
		Strategized:    newBigInt(st.balance.Strategized),
		TotalFund:      newBigInt(st.balance.TotalFund),
		ManagerRevenue: newBigInt(st.balance.ManagerRevenue),
		TotalShares:    newBigInt(st.shares.Total),
		StakedShares:   newBigInt(st.shares.Staked),
		AvgStrategyAPR: uint64(st.avgStrategyAPR),
		Rates: storedRates{
			TargetStake:     uint64(st.rates.TargetStakePercent),
			TargetLiquidity: uint64(st.rates.TargetLiquidityPercent),
			ProtocolEarning: uint64(st.rates.ProtocolEarningPercent),
			EarnFactor:      uint64(st.rates.ManagerEarnFactor),
			EarnFactorMax:   uint64(st.rates.ManagerEarnFactorMax),
			ExitFee:         uint64(st.rates.ExitFeePercent),
		},
		Treasury:          st.treasury.Bytes(),
		Paused:            st.paused,
		Closed:            st.closed,
		ManagerLastActive: uint64(st.managerLastActive),
	}
	for _, addr := range st.balance.beneficiaries() {
		stored.ProtocolRevenue = append(stored.ProtocolRevenue, storedRevenue{
			Beneficiary: addr.Bytes(),
			Amount:      newBigInt(st.balance.ProtocolRevenue[addr]),
		})
	}
	for addr := range st.originators {
		stored.Originators = append(stored.Originators, addr.Bytes())
	}
	sort.Slice(stored.Originators, func(i, j int) bool {
		return bytes.Compare(stored.Originators[i], stored.Originators[j]) < 0
	})
	for key, status := range st.loans {
		stored.Loans = append(stored.Loans, storedLoan{
			Originator: key.Originator.Bytes(),
			LoanID:     key.LoanID,
			Status:     uint64(status),
		})
	}
	sort.Slice(stored.Loans, func(i, j int) bool {
		if c := bytes.Compare(stored.Loans[i].Originator, stored.Loans[j].Originator); c != 0 {
			return c < 0
		}
		return stored.Loans[i].LoanID < stored.Loans[j].LoanID
	})
	return rlp.EncodeToBytes(stored)
}

func decodeLedger(pool crypto.Address, data []byte) (*ledger, error) {
	var stored storedLedger
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("pool engine: decode snapshot: %w", err)
	}
	if stored.Version != snapshotVersion {
		return nil, fmt.Errorf("pool engine: unsupported snapshot version %d", stored.Version)
	}
	if !bytes.Equal(stored.Pool, pool.Bytes()) {
		return nil, errSnapshotMismatch
	}
	st := &ledger{
		balance: &Balance{
			Custody:         newBigInt(stored.Custody),
			Liquid:          newBigInt(stored.Liquid),
			Allocated:       newBigInt(stored.Allocated),
			Strategized:     newBigInt(stored.Strategized),
			TotalFund:       newBigInt(stored.TotalFund),
			ManagerRevenue:  newBigInt(stored.ManagerRevenue),
			ProtocolRevenue: make(map[crypto.Address]*big.Int, len(stored.ProtocolRevenue)),
		},
		shares: &ShareLedger{
			Total:  newBigInt(stored.TotalShares),
			Staked: newBigInt(stored.StakedShares),
		},
		rates: RateConfig{
			TargetStakePercent:     Percent(stored.Rates.TargetStake),
			TargetLiquidityPercent: Percent(stored.Rates.TargetLiquidity),
			ProtocolEarningPercent: Percent(stored.Rates.ProtocolEarning),
			ManagerEarnFactor:      Percent(stored.Rates.EarnFactor),
			ManagerEarnFactorMax:   Percent(stored.Rates.EarnFactorMax),
			ExitFeePercent:         Percent(stored.Rates.ExitFee),
		},
		poolFundsLimit:    big.NewInt(0),
		avgStrategyAPR:    Percent(stored.AvgStrategyAPR),
		treasury:          crypto.BytesToAddress(stored.Treasury),
		originators:       make(map[crypto.Address]bool, len(stored.Originators)),
		loans:             make(map[LoanKey]LoanStatus, len(stored.Loans)),
		paused:            stored.Paused,
		closed:            stored.Closed,
		managerLastActive: int64(stored.ManagerLastActive),
	}
	for _, rev := range stored.ProtocolRevenue {
		st.balance.ProtocolRevenue[crypto.BytesToAddress(rev.Beneficiary)] = newBigInt(rev.Amount)
	}
	for _, raw := range stored.Originators {
		st.originators[crypto.BytesToAddress(raw)] = true
	}
	for _, loan := range stored.Loans {
		key := LoanKey{Originator: crypto.BytesToAddress(loan.Originator), LoanID: loan.LoanID}
		st.loans[key] = LoanStatus(loan.Status)
	}
	if err := st.rates.Validate(); err != nil {
		return nil, err
	}
	st.refreshLimit()
	if err := st.checkInvariants(); err != nil {
		return nil, err
	}
	return st, nil
}

// Export encodes the committed ledger.
func (e *Engine) Export() ([]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return encodeLedger(e.poolAddress, e.state)
}

// Restore replaces the ledger with an exported snapshot of the same pool.
// Collaborator balances are not touched; run Reconcile afterwards.
func (e *Engine) Restore(data []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	st, err := decodeLedger(e.poolAddress, data)
	if err != nil {
		return err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	e.state = st
	e.busy.Store(false)
	return nil
}

// Store persists engine snapshots in a key-value database.
type Store struct {
	db storage.Database
}

// NewStore constructs a snapshot store backed by db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func snapshotKey(pool crypto.Address) []byte {
	return []byte(fmt.Sprintf(snapshotKeyFormat, pool))
}

// Save writes the engine's committed ledger.
func (s *Store) Save(e *Engine) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	data, err := e.Export()
	if err != nil {
		return err
	}
	return s.db.Put(snapshotKey(e.poolAddress), data)
}

// Stage adds the engine's ledger to batch so it commits together with the
// collaborators' state.
func (s *Store) Stage(batch storage.Batch, e *Engine) error {
	if s == nil || batch == nil {
		return errNilState
	}
	data, err := e.Export()
	if err != nil {
		return err
	}
	batch.Put(snapshotKey(e.poolAddress), data)
	return nil
}

// Load restores the engine from its saved ledger. It reports false when the
// pool has never been saved.
func (s *Store) Load(e *Engine) (bool, error) {
	if s == nil || s.db == nil {
		return false, errNilState
	}
	data, err := s.db.Get(snapshotKey(e.PoolAddress()))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := e.Restore(data); err != nil {
		return false, err
	}
	return true, nil
}
