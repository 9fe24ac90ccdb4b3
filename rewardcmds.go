package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/staking"
	"github.com/invarch/daostake/internal/lib/substrate"
)

func GetRewardCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "rewards",
		Aliases: []string{"r"},
		Usage:   "Show and claim staking rewards",
		Commands: []*cli.Command{
			{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Show unclaimed eras per DAO and reward totals",
				Action:  RewardsStatus,
			},
			{
				Name:    "claim",
				Aliases: []string{"c"},
				Usage:   "Claim the rewards of every unclaimed era in a single transaction",
				Action:  RewardsClaim,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "restake",
						Usage: "Restake the claimed rewards, split evenly across the DAOs you stake in. Defaults to the saved preference",
					},
				},
			},
			{
				Name:   "autorestake",
				Usage:  "Show or set (on/off) the auto-restake preference",
				Action: RewardsAutoRestake,
			},
			{
				Name:   "history",
				Usage:  "Show recent transaction outcomes (requires --history)",
				Action: RewardsHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
					},
				},
			},
		},
	}
}

func loadAccountState(ctx context.Context) (staking.SessionSnapshot, map[uint32]staking.DAO, error) {
	account, err := App.requireAccount()
	if err != nil {
		return staking.SessionSnapshot{}, nil, err
	}
	daos, err := App.source.RegisteredDAOs(ctx)
	if err != nil {
		return staking.SessionSnapshot{}, nil, fmt.Errorf("failed to list DAOs: %w", err)
	}
	byID := map[uint32]staking.DAO{}
	var ids []uint32
	for _, dao := range daos {
		byID[dao.ID] = dao
		ids = append(ids, dao.ID)
	}
	snap, err := App.claims.Load(ctx, account, ids)
	return snap, byID, err
}

func RewardsStatus(ctx context.Context, command *cli.Command) error {
	snap, daos, err := loadAccountState(ctx)
	if err != nil {
		return err
	}
	agg := snap.Aggregate

	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DAO\tID\tStaked\tEarliest Unclaimed\tUnclaimed Eras\t")
	for _, pos := range agg.SortedPositions() {
		var earliest, eras string
		if agg.Unclaimed.Contains(pos.PositionID) {
			earliest = fmt.Sprint(pos.EarliestUnclaimedEra())
			eras = fmt.Sprint(agg.CurrentEra - pos.EarliestUnclaimedEra())
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n", daos[pos.PositionID].Metadata.DisplayName(pos.PositionID), pos.PositionID,
			substrate.FormattedAmount(pos.StakedAmount, staking.TokenDecimals), earliest, eras)
	}
	tw.Flush()
	fmt.Print(out.String())

	fmt.Printf("\nCurrent era: %d\n", agg.CurrentEra)
	fmt.Printf("Unclaimed eras: %d across %d DAOs (max gap %d)\n", agg.Unclaimed.EraCount(agg.CurrentEra),
		len(agg.Unclaimed.Positions), agg.Unclaimed.MaxEraGap)
	fmt.Printf("Total claimed: %s\n", formatTokens(snap.Totals.TotalClaimed))
	fmt.Printf("Total unclaimed: %s\n", formatTokens(snap.Totals.TotalUnclaimed))
	fmt.Printf("Available balance: %s\n", formatTokens(snap.Balance.Available()))
	return nil
}

func RewardsClaim(ctx context.Context, command *cli.Command) error {
	snap, _, err := loadAccountState(ctx)
	if err != nil {
		return err
	}
	restake := App.prefs.AutoRestake()
	if command.IsSet("restake") {
		restake = command.Bool("restake")
	}
	agg := snap.Aggregate
	misc.Infof(App.logger, "claiming %d eras across %d DAOs (restake:%v)", agg.Unclaimed.EraCount(agg.CurrentEra),
		len(agg.Unclaimed.Positions), restake)

	result, err := App.claims.ClaimRewards(ctx, App.claims.RequestFor(snap.Account, restake))
	if errors.Is(err, staking.ErrNothingToClaim) {
		misc.Infof(App.logger, "nothing to claim")
		return nil
	}
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "claim %s in block %s", result.State, result.BlockHash)
	return nil
}

func RewardsAutoRestake(ctx context.Context, command *cli.Command) error {
	switch arg := command.Args().First(); arg {
	case "":
		fmt.Println("auto-restake:", onOff(App.prefs.AutoRestake()))
		return nil
	case "on", "off":
		return App.prefs.SetAutoRestake(arg == "on")
	default:
		return fmt.Errorf("expected on or off, got %q", arg)
	}
}

func RewardsHistory(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	outcomes, err := App.recorder.Recent(account, int(command.Int("limit")))
	if err != nil {
		return err
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "When\tKind\tState\tCalls\tAmount\tBlock\tDetail\t")
	for _, o := range outcomes {
		amount := o.Amount
		if value, err := substrate.ParseAmount(o.Amount, 0); err == nil {
			amount = substrate.FormattedAmount(value, staking.TokenDecimals)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n", o.At.Local().Format("2006-01-02 15:04"), o.Kind, o.State, o.Calls,
			amount, o.BlockHash, o.Detail)
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
