package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/staking"
	"github.com/invarch/daostake/internal/lib/substrate"
)

func GetStakeCmdOpts() *cli.Command {
	daoFlag := &cli.UintFlag{
		Name:     "dao",
		Usage:    "DAO id (the id in 'dao list')",
		Required: true,
	}
	amountFlag := &cli.StringFlag{
		Name:  "amount",
		Usage: "Amount in whole tokens, ie: 12.5. Prompted for if not set",
	}
	return &cli.Command{
		Name:    "stake",
		Aliases: []string{"s"},
		Usage:   "Stake into, unstake from or move stake between DAOs",
		Commands: []*cli.Command{
			{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   fmt.Sprintf("Stake into a DAO. The first stake into a DAO must be at least %s tokens", staking.MinStakeAmount.Shift(-staking.TokenDecimals)),
				Action:  StakeAdd,
				Flags:   []cli.Flag{daoFlag, amountFlag},
			},
			{
				Name:    "remove",
				Aliases: []string{"r"},
				Usage:   "Unstake from a DAO. Unstaked funds unbond and are released with 'stake withdraw'",
				Action:  StakeRemove,
				Flags:   []cli.Flag{daoFlag, amountFlag},
			},
			{
				Name:    "move",
				Aliases: []string{"m"},
				Usage:   "Move stake from one DAO to another without unbonding",
				Action:  StakeMove,
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "from", Usage: "source DAO id", Required: true},
					&cli.UintFlag{Name: "to", Usage: "destination DAO id", Required: true},
					amountFlag,
				},
			},
			{
				Name:    "withdraw",
				Aliases: []string{"w"},
				Usage:   "Withdraw unbonded stake",
				Action:  StakeWithdraw,
			},
		},
	}
}

func StakeAdd(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	daoID := uint32(command.Uint("dao"))
	amount := command.String("amount")
	if amount == "" {
		balance, err := App.source.AccountBalance(ctx, account)
		if err != nil {
			return err
		}
		current, err := App.stakes.CurrentStake(ctx, account, daoID)
		if err != nil {
			return err
		}
		maxAmount := staking.MaxStakeAmount(balance.Available())
		req := staking.StakeRequest{Kind: staking.KindStake, Available: maxAmount, CurrentStake: current}
		if amount, err = getAmount("Amount to stake", req, maxAmount); err != nil {
			return err
		}
	}
	return reportTx(App.stakes.Stake(ctx, account, daoID, amount))
}

func StakeRemove(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	daoID := uint32(command.Uint("dao"))
	amount, err := unstakeAmount(ctx, command.String("amount"), staking.KindUnstake, account, daoID)
	if err != nil {
		return err
	}
	return reportTx(App.stakes.Unstake(ctx, account, daoID, amount))
}

func StakeMove(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	fromID, toID := uint32(command.Uint("from")), uint32(command.Uint("to"))
	amount, err := unstakeAmount(ctx, command.String("amount"), staking.KindMove, account, fromID)
	if err != nil {
		return err
	}
	return reportTx(App.stakes.MoveStake(ctx, account, fromID, toID, amount))
}

func StakeWithdraw(ctx context.Context, command *cli.Command) error {
	account, err := App.requireAccount()
	if err != nil {
		return err
	}
	return reportTx(App.stakes.WithdrawUnstaked(ctx, account))
}

func unstakeAmount(ctx context.Context, amount string, kind staking.StakeKind, account string, daoID uint32) (string, error) {
	if amount != "" {
		return amount, nil
	}
	current, err := App.stakes.CurrentStake(ctx, account, daoID)
	if err != nil {
		return "", err
	}
	return getAmount(fmt.Sprintf("Amount to %s", kind), staking.StakeRequest{Kind: kind, CurrentStake: current}, current)
}

func reportTx(result staking.TxResult, err error) error {
	if err != nil {
		return err
	}
	if result.BlockHash != "" {
		misc.Infof(App.logger, "transaction %s in block %s", result.State, result.BlockHash)
	} else {
		misc.Infof(App.logger, "transaction %s", result.State)
	}
	return nil
}

// formatTokens renders a base unit amount in whole tokens with the network's token symbol.
func formatTokens(amount decimal.Decimal) string {
	return fmt.Sprintf("%s %s", substrate.FormattedAmount(amount, staking.TokenDecimals), App.network.TokenSymbol)
}
