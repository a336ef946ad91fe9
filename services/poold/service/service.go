package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"lendingpool/config"
	"lendingpool/core/events"
	"lendingpool/crypto"
	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/pool"
	"lendingpool/observability/metrics"
	"lendingpool/storage"
)

// ErrPersist marks an operation that committed in memory but could not be
// written to the database. The next checkpoint retries the write.
var ErrPersist = errors.New("poold: persist state")

// ErrFaucetDisabled is returned by Mint unless the development faucet is on.
var ErrFaucetDisabled = errors.New("poold: faucet disabled")

const (
	assetsKeyFormat = "poold/%s/assets"
	sharesKeyFormat = "poold/%s/shares"
)

// Options configures a pool service.
type Options struct {
	Pool     *config.Pool
	DB       storage.Database
	Pauses   *nativecommon.PauseSet
	Emitters []events.Emitter
	Logger   *slog.Logger
	Faucet   bool
	Now      func() time.Time
}

// Accounts is the state handed to Update and View callbacks.
type Accounts struct {
	Engine *pool.Engine
	Assets *bank.Ledger
	Shares *bank.ShareToken
}

// Service owns one pool engine together with its asset ledger and share
// token. Every call is serialized, and every successful update is persisted.
type Service struct {
	mu     sync.Mutex
	name   string
	cfg    *config.Pool
	db     storage.Database
	store  *pool.Store
	pauses *nativecommon.PauseSet
	logger *slog.Logger
	faucet bool

	accounts Accounts
}

// New builds the pool described by opts and restores any state saved in the
// database.
func New(opts Options) (*Service, error) {
	if opts.Pool == nil {
		return nil, fmt.Errorf("poold: pool configuration required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("poold: database required")
	}
	engineCfg, err := opts.Pool.EngineConfig()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	pauses := opts.Pauses
	if pauses == nil {
		pauses = nativecommon.NewPauseSet()
	}

	assets := bank.NewLedger(opts.Pool.AssetSymbol, opts.Pool.AssetDecimals)
	shares := bank.NewShareToken(opts.Pool.ShareSymbol, engineCfg.PoolAddress)
	engine, err := pool.NewEngine(engineCfg, assets, shares)
	if err != nil {
		return nil, err
	}
	engine.SetPauses(pauses)
	engine.SetEmitter(events.Fanout(opts.Emitters))
	if opts.Now != nil {
		engine.SetNowFunc(opts.Now)
	}

	s := &Service{
		name:     opts.Pool.Name,
		cfg:      opts.Pool,
		db:       opts.DB,
		store:    pool.NewStore(opts.DB),
		pauses:   pauses,
		logger:   log.With(slog.String("pool", opts.Pool.Name)),
		faucet:   opts.Faucet,
		accounts: Accounts{Engine: engine, Assets: assets, Shares: shares},
	}
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the configured pool name.
func (s *Service) Name() string { return s.name }

// Config returns the pool configuration the service was built from.
func (s *Service) Config() *config.Pool { return s.cfg }

func (s *Service) restore() error {
	loadedAssets, err := s.importInto(fmt.Sprintf(assetsKeyFormat, s.name), s.accounts.Assets.Import)
	if err != nil {
		return fmt.Errorf("poold: restore assets: %w", err)
	}
	loadedShares, err := s.importInto(fmt.Sprintf(sharesKeyFormat, s.name), s.accounts.Shares.Import)
	if err != nil {
		return fmt.Errorf("poold: restore shares: %w", err)
	}
	loadedPool, err := s.store.Load(s.accounts.Engine)
	if err != nil {
		return fmt.Errorf("poold: restore pool: %w", err)
	}
	if !loadedAssets && !loadedShares && !loadedPool {
		s.logger.Info("initialised new pool", slog.String("address", s.accounts.Engine.PoolAddress().String()))
		return s.persist()
	}
	if err := s.accounts.Engine.Reconcile(); err != nil {
		return fmt.Errorf("poold: restored state inconsistent: %w", err)
	}
	s.logger.Info("restored pool state", slog.String("address", s.accounts.Engine.PoolAddress().String()))
	return nil
}

func (s *Service) importInto(key string, load func([]byte) error) (bool, error) {
	data, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, load(data)
}

func (s *Service) persist() error {
	assets, err := s.accounts.Assets.Export()
	if err != nil {
		return fmt.Errorf("%w: export assets: %v", ErrPersist, err)
	}
	shares, err := s.accounts.Shares.Export()
	if err != nil {
		return fmt.Errorf("%w: export shares: %v", ErrPersist, err)
	}
	batch := s.db.NewBatch()
	batch.Put([]byte(fmt.Sprintf(assetsKeyFormat, s.name)), assets)
	batch.Put([]byte(fmt.Sprintf(sharesKeyFormat, s.name)), shares)
	if err := s.store.Stage(batch, s.accounts.Engine); err != nil {
		return fmt.Errorf("%w: export pool: %v", ErrPersist, err)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Update runs fn with exclusive access to the pool and persists the result
// when fn succeeds. Engine operations are atomic, so a failing fn leaves
// nothing to write.
func (s *Service) Update(operation string, fn func(Accounts) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.accounts); err != nil {
		s.logger.Debug("operation rejected", slog.String("operation", operation), slog.Any("error", err))
		return err
	}
	if err := s.persist(); err != nil {
		s.logger.Error("persist failed", slog.String("operation", operation), slog.Any("error", err))
		return err
	}
	return nil
}

// View runs fn with exclusive read access to the pool.
func (s *Service) View(fn func(Accounts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.accounts)
}

// Approve lets the pool pull up to amount from owner.
func (s *Service) Approve(owner crypto.Address, amount *big.Int) error {
	return s.Update("approve", func(a Accounts) error {
		return a.Assets.Approve(owner, a.Engine.PoolAddress(), amount)
	})
}

// Mint credits amount of the custody asset to addr. Development only.
func (s *Service) Mint(addr crypto.Address, amount *big.Int) error {
	if !s.faucet {
		return ErrFaucetDisabled
	}
	return s.Update("faucet", func(a Accounts) error {
		return a.Assets.Mint(addr, amount)
	})
}

// SetOperatorPause engages or releases an operator pause switch.
func (s *Service) SetOperatorPause(module string, paused bool) {
	s.pauses.Set(module, paused)
	s.logger.Warn("operator pause updated", slog.String("module", module), slog.Bool("paused", paused))
}

// OperatorPaused reports the operator pause switch of the pool module.
func (s *Service) OperatorPaused() bool {
	return s.pauses.IsPaused(pool.ModuleName)
}

// Checkpoint persists the pool, reconciles it against its collaborators and
// publishes its gauges.
func (s *Service) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	engine := s.accounts.Engine
	if err := s.persist(); err != nil {
		s.logger.Error("checkpoint persist failed", slog.Any("error", err))
		return err
	}
	err := engine.Reconcile()
	gauges := metrics.Pool()
	gauges.RecordReconcile(s.name, err)
	gauges.ObserveStats(s.name, engine.Stats())
	gauges.ObserveHealth(s.name, engine.SharePrice(), engine.CurrentLenderAPY(), engine.IsFunctional())
	if err != nil {
		s.logger.Error("checkpoint reconcile failed", slog.Any("error", err))
		return err
	}
	return nil
}
