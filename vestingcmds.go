package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/staking"
)

func GetVestingCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "vesting",
		Aliases: []string{"v"},
		Usage:   "Vesting schedules of the account",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show claimable and remaining vested amounts and the unlock schedule",
				Action: VestingShow,
			},
			{
				Name:   "claim",
				Usage:  "Unlock every vested amount",
				Action: VestingClaim,
			},
		},
	}
}

func VestingShow(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	overview, err := App.stakes.Vesting(ctx, account)
	if err != nil {
		return err
	}
	summary := overview.Summary
	fmt.Printf("Claimable: %s\n", formatTokens(summary.Claimable))
	fmt.Printf("Remaining: %s\n", formatTokens(summary.Remaining))
	fmt.Printf("Total vesting: %s\n", formatTokens(summary.Total))
	fmt.Printf("Frozen: %s\n", formatTokens(summary.Frozen))
	fmt.Printf("Available: %s\n", formatTokens(summary.Available))
	if summary.EndDate.IsZero() {
		fmt.Println("No vesting schedules")
		return nil
	}
	fmt.Printf("Fully vested: %s (%s)\n", summary.EndDate.Local().Format("2006-01-02"), summary.RemainingPeriod.Round(time.Hour))

	if len(overview.Payouts) == 0 {
		return nil
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Block\tDate\tAmount\t")
	for _, payout := range overview.Payouts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", payout.Block, payout.Date.Local().Format("2006-01-02 15:04"), formatTokens(payout.Amount))
	}
	tw.Flush()
	fmt.Print("\n", out.String())
	return nil
}

func VestingClaim(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	result, err := App.stakes.ClaimVesting(ctx, account)
	if errors.Is(err, staking.ErrNothingToClaim) {
		misc.Infof(App.logger, "nothing vested to claim yet")
		return nil
	}
	return reportTx(result, err)
}
