package keeper

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"dripline/crypto"
	"dripline/native/dca"
	"dripline/observability"
)

// Config wires a Keeper.
type Config struct {
	Engine    *dca.Engine
	Registrar *LocalRegistrar
	Executor  crypto.Address
	// GasPrice is the current-gas-price input fed to the eligibility
	// predicate. A real deployment sources this from the execution
	// environment; the local keeper uses a configured value.
	GasPrice *big.Int
	// Schedule is a cron spec (e.g. "@every 15s") controlling how often the
	// armed set is polled.
	Schedule string
	// ExecutionsPerSec bounds the rate of ExecuteDCA calls across owners.
	ExecutionsPerSec float64
	Log              *slog.Logger
}

// Keeper is the automation actor: it polls eligibility for every armed
// position on a schedule and invokes execution with the resolver's guards.
type Keeper struct {
	engine    *dca.Engine
	registrar *LocalRegistrar
	executor  [20]byte
	gasPrice  *big.Int
	schedule  string
	limiter   *rate.Limiter
	log       *slog.Logger
	metrics   *observability.KeeperMetrics
	cron      *cron.Cron
}

// New creates a keeper from the config. Unset optional fields get safe
// defaults.
func New(cfg Config) *Keeper {
	limit := rate.Inf
	if cfg.ExecutionsPerSec > 0 {
		limit = rate.Limit(cfg.ExecutionsPerSec)
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 15s"
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	gasPrice := cfg.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}
	return &Keeper{
		engine:    cfg.Engine,
		registrar: cfg.Registrar,
		executor:  cfg.Executor.Raw(),
		gasPrice:  gasPrice,
		schedule:  schedule,
		limiter:   rate.NewLimiter(limit, 1),
		log:       logger,
		metrics:   observability.Keeper(),
		cron:      cron.New(),
	}
}

// Start schedules the polling loop. Returns once the schedule is registered.
func (k *Keeper) Start() error {
	if _, err := k.cron.AddFunc(k.schedule, func() { k.RunOnce(context.Background()) }); err != nil {
		return err
	}
	k.cron.Start()
	k.log.Info("keeper started", "schedule", k.schedule)
	return nil
}

// Stop halts the polling loop and waits for an in-flight run to finish.
func (k *Keeper) Stop() {
	ctx := k.cron.Stop()
	<-ctx.Done()
	k.log.Info("keeper stopped")
}

// RunOnce polls every armed owner once. Exposed for tests and manual
// triggering.
func (k *Keeper) RunOnce(ctx context.Context) {
	for _, owner := range k.registrar.Armed() {
		if err := k.limiter.Wait(ctx); err != nil {
			return
		}
		k.poll(owner)
	}
}

func (k *Keeper) poll(owner [20]byte) {
	ownerStr := crypto.NewAddress(owner[:]).String()
	eligible, minOuts, reason, err := k.engine.CheckExecutable(owner, k.gasPrice)
	if err != nil {
		k.metrics.Polls.WithLabelValues("error").Inc()
		k.log.Error("eligibility check failed", "owner", ownerStr, "err", err)
		return
	}
	if !eligible {
		k.metrics.Polls.WithLabelValues("not_eligible").Inc()
		k.log.Debug("position not eligible", "owner", ownerStr, "reason", reason)
		return
	}
	k.metrics.Polls.WithLabelValues("eligible").Inc()

	start := time.Now()
	receipt, err := k.engine.ExecuteDCA(k.executor, owner, minOuts)
	k.metrics.Latency.Observe(time.Since(start).Seconds())
	if err != nil {
		k.metrics.Executions.WithLabelValues("failed").Inc()
		k.log.Error("execution failed", "owner", ownerStr, "err", err)
		return
	}
	failed := 0
	for _, leg := range receipt.Legs {
		if leg.Error != "" {
			failed++
			k.metrics.LegFailures.Inc()
		}
	}
	k.metrics.Executions.WithLabelValues("committed").Inc()
	k.log.Info("execution committed",
		"owner", ownerStr,
		"legs", len(receipt.Legs),
		"failedLegs", failed,
	)
}
