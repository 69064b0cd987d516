package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dripline/config"
	"dripline/core/events"
	coretypes "dripline/core/types"
	"dripline/crypto"
	"dripline/keeper"
	nativecommon "dripline/native/common"
	"dripline/native/dca"
	"dripline/observability/logging"
	"dripline/rpc"
	"dripline/state"
	"dripline/storage"
	"dripline/venue"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to dripd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("dripd", cfg.Environment, logging.Options{
		Path:       cfg.LogPath,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	})

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	manager := state.NewManager(db)

	registryOwner := crypto.MustDecodeAddress(cfg.RegistryOwner)
	executor := crypto.MustDecodeAddress(cfg.Executor)

	exchange := venue.NewStatic()
	registrar := keeper.NewLocalRegistrar()

	engine := dca.NewEngine(registryOwner.Raw(), executor.Raw())
	engine.SetState(manager)
	engine.SetVenue(exchange)
	engine.SetRegistrar(registrar)
	engine.SetEmitter(logEmitter{log: logger})
	engine.SetPauses(nativecommon.StaticPauses{"dca": cfg.Paused})
	engine.SetExecutionFee(cfg.FeeAsset, cfg.ExecutionFeeAmount())
	engine.SetSlippageFloor(cfg.SlippageFloorBps)

	if cfg.GenesisFile != "" {
		if err := applyGenesis(cfg.GenesisFile, engine, exchange, manager, registryOwner); err != nil {
			log.Fatalf("apply genesis: %v", err)
		}
	}

	if err := rearmTasks(manager, registrar); err != nil {
		log.Fatalf("rearm tasks: %v", err)
	}

	server := rpc.NewServer(engine, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("rpc server: %v", err)
		}
	}()

	automation := keeper.New(keeper.Config{
		Engine:           engine,
		Registrar:        registrar,
		Executor:         executor,
		GasPrice:         cfg.GasPriceAmount(),
		Schedule:         cfg.KeeperSchedule,
		ExecutionsPerSec: cfg.ExecutionsPerSec,
		Log:              logger,
	})
	if err := automation.Start(); err != nil {
		log.Fatalf("start keeper: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	automation.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// logEmitter forwards ledger events to the structured log so operators can
// follow lifecycle changes without a separate subscription surface.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if carrier, ok := evt.(interface{ Event() *coretypes.Event }); ok {
		if e := carrier.Event(); e != nil {
			args := make([]any, 0, len(e.Attributes)*2)
			for k, v := range e.Attributes {
				args = append(args, k, v)
			}
			l.log.Info("event "+e.Type, args...)
			return
		}
	}
	l.log.Info("event " + evt.EventType())
}

// rearmTasks re-registers the trigger for every persisted armed position.
// Registrar handles do not survive a restart, so armed positions get a fresh
// handle while disarmed ones keep their finalization reason untouched.
func rearmTasks(manager *state.Manager, registrar *keeper.LocalRegistrar) error {
	owners, err := manager.PositionOwners()
	if err != nil {
		return err
	}
	for _, owner := range owners {
		pos, ok, err := manager.PositionGet(owner)
		if err != nil {
			return err
		}
		if !ok || !pos.Armed() {
			continue
		}
		handle, err := registrar.Arm(owner)
		if err != nil {
			return err
		}
		pos.TaskHandle = handle
		if err := manager.PositionPut(pos); err != nil {
			return err
		}
	}
	return nil
}

// applyGenesis seeds the allow-list, venue routes, and wallet balances from
// the bootstrap file. Registry writes go through the owner-gated engine path
// so versioning and events behave the same as runtime mutations.
func applyGenesis(path string, engine *dca.Engine, exchange *venue.Static, manager *state.Manager, owner crypto.Address) error {
	genesis, err := config.LoadGenesis(path)
	if err != nil {
		return err
	}
	// Wallet balances must not be re-credited on restart. A non-zero registry
	// version marks a ledger that has already been bootstrapped; only the
	// in-memory route table is rebuilt in that case.
	snapshot, err := manager.RegistryGet()
	if err != nil {
		return err
	}
	bootstrapped := snapshot.Version > 0
	if !bootstrapped && len(genesis.AllowedAssets) > 0 {
		allowed := make([]bool, len(genesis.AllowedAssets))
		for i := range allowed {
			allowed[i] = true
		}
		if err := engine.SetAllowedAssets(owner.Raw(), genesis.AllowedAssets, allowed); err != nil {
			return err
		}
	}
	for _, route := range genesis.Routes {
		err := exchange.SetRoute(
			route.Name,
			dca.NormalizeAsset(route.AssetIn),
			dca.NormalizeAsset(route.AssetOut),
			config.Amount(route.Num),
			config.Amount(route.Den),
		)
		if err != nil {
			return err
		}
	}
	if bootstrapped {
		return nil
	}
	for _, balance := range genesis.Balances {
		addr, err := crypto.DecodeAddress(balance.Address)
		if err != nil {
			return err
		}
		if err := manager.WalletCredit(addr.Raw(), dca.NormalizeAsset(balance.Asset), config.Amount(balance.Amount)); err != nil {
			return err
		}
	}
	return nil
}
