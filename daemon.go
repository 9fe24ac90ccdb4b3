package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/ssgreg/repeat"

	"github.com/invarch/daostake/internal/config"
	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/staking"
	"github.com/invarch/daostake/internal/lib/substrate"
)

// Daemon watches the configured accounts, keeping their unclaimed eras current from chain
// subscriptions, exports them as metrics and optionally claims on a schedule.
type Daemon struct {
	logger     *slog.Logger
	claims     *staking.ClaimOrchestrator
	source     *staking.SubstrateSource
	signer     substrate.MultipleWalletSigner
	prefs      *PreferenceStore
	configPath string

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	cfg    *config.Config
	daoIDs []uint32
}

func newDaemon(configPath string, cfg *config.Config, prefs *PreferenceStore) *Daemon {
	return &Daemon{
		logger:     App.logger,
		claims:     App.claims,
		source:     App.source,
		signer:     App.signer,
		prefs:      prefs,
		configPath: configPath,
		cfg:        cfg,
	}
}

func (d *Daemon) config() *config.Config {
	d.RLock()
	defer d.RUnlock()
	return d.cfg
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup) error {
	d.logger.Info("Starting daostake daemon")

	if err := d.resolveDAOs(ctx); err != nil {
		return err
	}
	cfg := d.config()

	for _, account := range cfg.Accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.AccountWatcher(ctx, account)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.TotalsRefresher(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.serveMetrics(ctx, cfg.Metrics.Port)
	}()

	if cfg.AutoClaim.Enabled {
		scheduler := cron.New(cron.WithParser(config.CronParser))
		if _, err := scheduler.AddFunc(cfg.AutoClaim.Cron, func() { d.autoClaim(ctx) }); err != nil {
			return fmt.Errorf("register auto claim: %w", err)
		}
		scheduler.Start()
		misc.Infof(d.logger, "auto claim scheduled: %s (restake:%v)", cfg.AutoClaim.Cron, cfg.ClaimRestake(d.prefs.AutoRestake()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			// wait for a running claim to finish
			<-scheduler.Stop().Done()
		}()
	}
	return nil
}

func (d *Daemon) resolveDAOs(ctx context.Context) error {
	ids := d.config().DAOs
	if len(ids) == 0 {
		daos, err := d.source.RegisteredDAOs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list DAOs: %w", err)
		}
		for _, dao := range daos {
			ids = append(ids, dao.ID)
		}
	}
	slices.Sort(ids)
	d.Lock()
	d.daoIDs = ids
	d.Unlock()
	misc.Infof(d.logger, "watching %d DAOs", len(ids))
	return nil
}

// AccountWatcher loads the account's positions and then follows chain changes, reloading from
// scratch whenever the subscriptions end.
func (d *Daemon) AccountWatcher(ctx context.Context, account string) {
	defer misc.Infof(d.logger, "Exiting AccountWatcher for %s", account)
	misc.Infof(d.logger, "Starting AccountWatcher for %s", account)

	d.RLock()
	daoIDs := d.daoIDs
	d.RUnlock()
	for {
		snap, err := d.claims.Load(ctx, account, daoIDs)
		if err == nil {
			logUnclaimed(d.logger, snap)
			err = d.claims.Watch(ctx, account, daoIDs, func(snap staking.SessionSnapshot) {
				logUnclaimed(d.logger, snap)
			})
		}
		if ctx.Err() != nil {
			return
		}
		misc.Warnf(d.logger, "watch of %s interrupted, restarting: %v", account, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}

func logUnclaimed(logger *slog.Logger, snap staking.SessionSnapshot) {
	agg := snap.Aggregate
	misc.Debugf(logger, "%s era:%d unclaimed eras:%d positions:%d max gap:%d", snap.Account, agg.CurrentEra,
		agg.Unclaimed.EraCount(agg.CurrentEra), len(agg.Unclaimed.Positions), agg.Unclaimed.MaxEraGap)
}

// TotalsRefresher keeps the reward index totals fresh and picks up config file changes.
func (d *Daemon) TotalsRefresher(ctx context.Context) {
	defer d.logger.Info("Exiting TotalsRefresher")
	for {
		for _, account := range d.config().Accounts {
			if err := d.claims.RefreshTotals(ctx, account); err != nil && !errors.Is(err, staking.ErrDataUnavailable) {
				misc.Warnf(d.logger, "reward totals refresh failed for %s: %v", account, err)
			}
			if err := d.claims.ReloadBalance(ctx, account); err != nil {
				misc.Warnf(d.logger, "balance refresh failed for %s: %v", account, err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Minute):
			// Make sure our config is fresh in case the user updated it
			if err := d.refetchConfig(ctx); err != nil {
				misc.Warnf(d.logger, "keeping previous config: %v", err)
			}
		}
	}
}

// refetchConfig reloads the config file. Account, DAO and schedule changes need a restart, the
// auto claim thresholds and restake choice apply on the next run.
func (d *Daemon) refetchConfig(ctx context.Context) error {
	var cfg *config.Config
	err := repeat.Repeat(
		repeat.Fn(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var err error
			cfg, err = config.Load(d.configPath)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return cfg.Validate()
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(d.logger, "retrying load of config %s, error:%v", d.configPath, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 5 * time.Second,
				MaxDelay:  10 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return err
	}
	d.Lock()
	d.cfg.AutoClaim.Restake = cfg.AutoClaim.Restake
	d.cfg.AutoClaim.MinEras = cfg.AutoClaim.MinEras
	d.cfg.AutoClaim.MinUnclaimed = cfg.AutoClaim.MinUnclaimed
	d.Unlock()
	return nil
}

func (d *Daemon) autoClaim(ctx context.Context) {
	d.RLock()
	cfg := *d.cfg
	d.RUnlock()
	for _, account := range cfg.Accounts {
		if !d.signer.HasAccount(account) {
			misc.Warnf(d.logger, "no local key for %s, not claiming", account)
			continue
		}
		snap := d.claims.Session(account).Snapshot()
		if claim, reason := shouldAutoClaim(snap, cfg.AutoClaim.MinEras, cfg.MinUnclaimedAmount()); !claim {
			misc.Infof(d.logger, "not claiming for %s: %s", account, reason)
			continue
		}
		result, err := d.claims.ClaimRewards(ctx, d.claims.RequestFor(account, cfg.ClaimRestake(d.prefs.AutoRestake())))
		if err != nil {
			misc.Errorf(d.logger, "auto claim for %s ended %s: %v", account, result.State, err)
			continue
		}
		misc.Infof(d.logger, "auto claim for %s finalized in block %s", account, result.BlockHash)
	}
}

// shouldAutoClaim decides whether a scheduled claim is worth it. minUnclaimed is in whole tokens.
func shouldAutoClaim(snap staking.SessionSnapshot, minEras int, minUnclaimed decimal.Decimal) (bool, string) {
	agg := snap.Aggregate
	switch {
	case snap.Waiting:
		return false, "a claim is already in progress"
	case agg.Unclaimed.Empty():
		return false, "nothing to claim"
	case agg.Unclaimed.EraCount(agg.CurrentEra) < minEras:
		return false, fmt.Sprintf("fewer than %d unclaimed eras", minEras)
	case snap.Totals.TotalUnclaimed.LessThan(minUnclaimed.Shift(staking.TokenDecimals)):
		return false, fmt.Sprintf("less than %s unclaimed", minUnclaimed)
	}
	return true, ""
}

func (d *Daemon) serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	misc.Infof(d.logger, "serving metrics on :%d/metrics", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		misc.Errorf(d.logger, "metrics server failed: %v", err)
	}
}
