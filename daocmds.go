package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/antihax/optional"
	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/indexer"
	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/staking"
)

func GetDAOCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "dao",
		Usage: "Registered DAOs and their stake",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List registered DAOs with their stake in the current era and yours",
				Action:  DAOList,
			},
			{
				Name:   "info",
				Usage:  "Show details of a DAO",
				Action: DAOInfo,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "dao",
						Usage:    "DAO id (the id in 'dao list')",
						Required: true,
					},
				},
			},
			{
				Name:   "era",
				Usage:  "Show network wide staking info of the current era",
				Action: EraShow,
			},
		},
	}
}

func DAOList(ctx context.Context, command *cli.Command) error {
	daos, err := App.source.RegisteredDAOs(ctx)
	if err != nil {
		return err
	}
	era, err := App.source.CurrentEra(ctx)
	if err != nil {
		return err
	}
	var positions map[uint32]staking.StakePosition
	if account, err := App.requireAccount(); err == nil {
		ids := make([]uint32, 0, len(daos))
		for _, dao := range daos {
			ids = append(ids, dao.ID)
		}
		snap, err := App.claims.Load(ctx, account, ids)
		if err != nil {
			return err
		}
		positions = snap.Aggregate.Positions
	}

	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tDAO\tStakers\tTotal Staked\tActive\tYour Stake\t")
	for _, dao := range daos {
		stake, err := App.source.DAOEraStake(ctx, dao.ID, era)
		if err != nil {
			misc.Warnf(App.logger, "no era stake for DAO %d: %v", dao.ID, err)
		}
		var mine string
		if pos, found := positions[dao.ID]; found {
			mine = formatTokens(pos.StakedAmount)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%v\t%s\t\n", dao.ID, dao.Metadata.DisplayName(dao.ID), stake.NumberOfStakers,
			formatTokens(stake.TotalStaked), stake.Active, mine)
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func DAOInfo(ctx context.Context, command *cli.Command) error {
	daoID := uint32(command.Uint("dao"))
	daos, err := App.source.RegisteredDAOs(ctx)
	if err != nil {
		return err
	}
	var dao *staking.DAO
	for i := range daos {
		if daos[i].ID == daoID {
			dao = &daos[i]
		}
	}
	if dao == nil {
		return fmt.Errorf("DAO %d is not registered", daoID)
	}
	era, err := App.source.CurrentEra(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("DAO: %s (id %d)\n", dao.Metadata.DisplayName(dao.ID), dao.ID)
	fmt.Printf("Account: %s\n", dao.Account)
	switch dao.Metadata.Kind {
	case staking.MetadataPresent:
		fmt.Printf("Description: %s\n", dao.Metadata.Description)
		fmt.Printf("Image: %s\n", dao.Metadata.Image)
	case staking.MetadataAbsent:
		fmt.Println("No metadata registered")
	}
	if stake, err := App.source.DAOEraStake(ctx, dao.ID, era); err == nil {
		fmt.Printf("Era %d: %s staked by %d stakers (active: %v)\n", era, formatTokens(stake.TotalStaked), stake.NumberOfStakers, stake.Active)
	}
	if App.network.IndexerURL != "" {
		rewards, err := App.indexer.DAORewards(ctx, dao.ID, &indexer.QueryOpts{MaxTries: optional.NewInt32(3)})
		if err != nil {
			misc.Warnf(App.logger, "reward index unavailable: %v", err)
		} else if rewards.Found {
			fmt.Printf("Rewards claimed: %s, unclaimed: %s\n", formatTokens(rewards.TotalRewards), formatTokens(rewards.TotalUnclaimed))
		}
	}
	return nil
}

func EraShow(ctx context.Context, command *cli.Command) error {
	era, err := App.source.CurrentEra(ctx)
	if err != nil {
		return err
	}
	info, err := App.source.EraInfo(ctx, era)
	if err != nil {
		return err
	}
	fmt.Printf("Current era: %d\n", era)
	fmt.Printf("Staked: %s (active %s)\n", formatTokens(info.Staked), formatTokens(info.ActiveStake))
	fmt.Printf("Locked: %s\n", formatTokens(info.Locked))
	fmt.Printf("Staker rewards: %s\n", formatTokens(info.StakerRewards))
	fmt.Printf("DAO rewards: %s\n", formatTokens(info.CoreRewards))
	return nil
}
