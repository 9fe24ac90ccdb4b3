package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/config"
	"github.com/invarch/daostake/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run the application as a daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML daemon configuration",
				Value:   "daostake.yaml",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("DAOSTAKE_CONFIG"),
			},
		},
		Action: runAsDaemon,
	}
}

func runAsDaemon(ctx context.Context, command *cli.Command) error {
	var wg sync.WaitGroup

	configPath := command.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Accounts) == 0 && App.account != "" {
		cfg.Accounts = []string{App.account}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	// Create channel used by both the signal handler and node watcher goroutines
	// to notify the main goroutine when to stop.
	errc := make(chan error, 2)

	// Setup interrupt handler so that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		<-App.client.Done()
		errc <- errors.New("node connection closed")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := newDaemon(configPath, cfg, App.prefs).start(ctx, &wg); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}
