package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/substrate"
)

func GetKeyCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "Local key store related commands",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   fmt.Sprintf("List accounts with keys in the local key store (%s_xx env vars) and their balances", substrate.KeyEnvPrefix),
				Action:  KeysList,
			},
		},
	}
}

func KeysList(ctx context.Context, command *cli.Command) error {
	accounts := App.signer.Accounts()
	if len(accounts) == 0 {
		fmt.Printf("no keys loaded, set %s_1 (etc.) to a mnemonic or a 0x prefixed seed\n", substrate.KeyEnvPrefix)
		return nil
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Account\tFree\tReserved\tFrozen\tAvailable\t")
	for _, account := range accounts {
		balance, err := App.source.AccountBalance(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to fetch balance of %s: %w", account, err)
		}
		marker := ""
		if account == App.account {
			marker = " (*)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\t\n", account, marker, formatTokens(balance.Free), formatTokens(balance.Reserved),
			formatTokens(balance.Frozen), formatTokens(balance.Available()))
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}
