package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/indexer"
	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/recorder"
	"github.com/invarch/daostake/internal/lib/staking"
	"github.com/invarch/daostake/internal/lib/substrate"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *DaoStakeApp {
	log.SetFlags(0)
	// minimal output on a tty (CLI use), json otherwise (daemon use)
	logger := misc.NewLogger(os.Stdout, logLevel)
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	prefs, err := LoadPreferenceStore()
	if err != nil {
		misc.Warnf(logger, "using default preferences: %v", err)
		if prefs == nil {
			prefs = &PreferenceStore{}
		}
	}

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	appConfig := &DaoStakeApp{logger: logger, prefs: prefs}

	appConfig.cliCmd = &cli.Command{
		Name:    "daostake",
		Usage:   "Stake into DAOs, claim staking rewards and watch unclaimed eras",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("DAOSTAKE_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   fmt.Sprintf("Network to use, one of %v", substrate.KnownNetworks),
				Value:   "invarch",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("DAOSTAKE_NETWORK"),
			},
			&cli.StringFlag{
				Name:        "account",
				Usage:       "The account to act for. Defaults to the first account in the local key store",
				Sources:     cli.EnvVars("DAOSTAKE_ACCOUNT"),
				Aliases:     []string{"a"},
				Destination: &appConfig.account,
			},
			&cli.StringFlag{
				Name:    "history",
				Usage:   "SQLite file recording transaction outcomes. Outcomes are not recorded if unset",
				Sources: cli.EnvVars("DAOSTAKE_HISTORY_DB"),
			},
			&cli.BoolFlag{
				Name:    "yes",
				Usage:   "Sign transactions without asking for confirmation",
				Aliases: []string{"y"},
				Sources: cli.EnvVars("DAOSTAKE_NO_CONFIRM"),
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
			GetRewardCmdOpts(),
			GetStakeCmdOpts(),
			GetVestingCmdOpts(),
			GetDAOCmdOpts(),
			GetKeyCmdOpts(),
		},
	}
	return appConfig
}

type DaoStakeApp struct {
	cliCmd   *cli.Command
	logger   *slog.Logger
	network  substrate.NetworkConfig
	client   *substrate.Client
	signer   substrate.MultipleWalletSigner
	source   *staking.SubstrateSource
	indexer  *indexer.Client
	recorder recorder.Recorder
	runner   *staking.TxRunner
	claims   *staking.ClaimOrchestrator
	stakes   *staking.StakeManager
	prefs    *PreferenceStore

	// just here for flag bootstrapping destination
	account string
}

// initClients connects to the node of the selected network (which also validates it) and wires the
// staking components on top of it.
func (ac *DaoStakeApp) initClients(ctx context.Context, cmd *cli.Command) error {
	network := cmd.String("network")

	if envfile := cmd.String("envfile"); envfile != "" {
		err := loadNamedEnvFile(envfile)
		if err != nil {
			return err
		}
	}
	if !slices.Contains(substrate.KnownNetworks, network) {
		return fmt.Errorf("unknown network:%s", network)
	}

	// Now load .env.{network} overrides -ie: .env.local containing development keys
	misc.LoadEnvForNetwork(ac.logger, network)

	ac.network = substrate.GetNetworkConfig(network)
	misc.Debugf(ac.logger, "network config: %s", ac.network)

	client, err := substrate.Dial(ctx, ac.logger, ac.network.NodeURL, ac.network.NodeHeaders)
	if err != nil {
		return err
	}
	ac.client = client

	// This will load keys from the environment - and handles all 'local' signing for the app
	ac.signer = substrate.NewLocalKeyStore(ac.logger, ac.network.SS58Prefix)
	if ac.account == "" {
		if accounts := ac.signer.Accounts(); len(accounts) > 0 {
			ac.account = accounts[0]
		}
	}

	if historyDB := cmd.String("history"); historyDB != "" {
		ac.recorder, err = recorder.NewSQLiteRecorder(historyDB)
		if err != nil {
			return err
		}
	} else {
		ac.recorder = recorder.NewNoopRecorder()
	}

	ac.indexer = indexer.NewClient(ac.logger, ac.network.IndexerURL, ac.network.IndexerToken)

	authorizer := &staking.KeyStoreAuthorizer{Keys: ac.signer, Prefix: ac.network.SS58Prefix}
	if !cmd.Bool("yes") {
		authorizer.Confirm = confirmSigning
	}
	ac.source = staking.NewSubstrateSource(ac.logger, client, ac.network)
	ac.runner = staking.NewTxRunner(ac.logger, ac.source, authorizer, staking.LogNotifier{Log: ac.logger}, ac.recorder,
		staking.CallBuilder{Pallets: ac.network.Pallets})
	var index staking.RewardIndexService
	if ac.network.IndexerURL != "" {
		index = staking.IndexerRewards{Client: ac.indexer, Prefix: ac.network.SS58Prefix}
	}
	ac.claims = staking.NewClaimOrchestrator(ac.logger, ac.source, ac.runner, index, ac.source)
	ac.stakes = staking.NewStakeManager(ac.logger, ac.source, ac.source, ac.runner, ac.claims)
	return nil
}

func (ac *DaoStakeApp) close() {
	if ac.recorder != nil {
		_ = ac.recorder.Close()
	}
	if ac.client != nil {
		_ = ac.client.Close()
	}
}

// requireAccount returns the account commands act for.
func (ac *DaoStakeApp) requireAccount() (string, error) {
	if ac.account == "" {
		return "", fmt.Errorf("no account: use --account or add a key to the local key store (%s_xx env vars)", substrate.KeyEnvPrefix)
	}
	if _, err := substrate.DecodeAddressForNetwork(ac.account, ac.network.SS58Prefix); err != nil {
		return "", fmt.Errorf("invalid account %s: %w", ac.account, err)
	}
	return ac.account, nil
}

// daoIDs returns the ids of every registered DAO.
func (ac *DaoStakeApp) daoIDs(ctx context.Context) ([]uint32, error) {
	daos, err := ac.source.RegisteredDAOs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(daos))
	for _, dao := range daos {
		ids = append(ids, dao.ID)
	}
	return ids, nil
}

func loadNamedEnvFile(envFile string) error {
	misc.Infof(App.logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}
