package staking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/substrate"
	"github.com/invarch/daostake/internal/lib/vesting"
)

// StakeManager validates and submits stake changes and vesting claims. Sessions of the
// orchestrator are refreshed after each successful transaction.
type StakeManager struct {
	log      *slog.Logger
	source   ChainDataSource
	balances BalanceSource
	runner   *TxRunner
	claims   *ClaimOrchestrator
}

func NewStakeManager(log *slog.Logger, source ChainDataSource, balances BalanceSource, runner *TxRunner, claims *ClaimOrchestrator) *StakeManager {
	return &StakeManager{log: log, source: source, balances: balances, runner: runner, claims: claims}
}

// CurrentStake is the amount account has staked in the DAO, zero without history.
func (m *StakeManager) CurrentStake(ctx context.Context, account string, daoID uint32) (decimal.Decimal, error) {
	stakes, err := m.source.StakerInfo(ctx, daoID, account)
	if err != nil {
		return decimal.Zero, err
	}
	if pos, ok := PositionFromStakes(daoID, stakes); ok {
		return pos.StakedAmount, nil
	}
	return decimal.Zero, nil
}

// Stake stakes amount (whole tokens, as entered) into daoID.
func (m *StakeManager) Stake(ctx context.Context, account string, daoID uint32, amount string) (TxResult, error) {
	balance, err := m.balances.AccountBalance(ctx, account)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: balance: %w", ErrDataUnavailable, err)
	}
	current, err := m.CurrentStake(ctx, account, daoID)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: stake: %w", ErrDataUnavailable, err)
	}
	value, err := ValidateStakeAmount(StakeRequest{Kind: KindStake, Amount: amount, Available: balance.Available(), CurrentStake: current})
	if err != nil {
		return TxResult{}, err
	}
	call, err := m.runner.Builder().Stake(daoID, value)
	if err != nil {
		return TxResult{}, err
	}
	return m.run(ctx, KindStake.String(), account, value, []substrate.Call{call}, daoID)
}

// Unstake starts unbonding amount from daoID. Unbonded funds are released by WithdrawUnstaked.
func (m *StakeManager) Unstake(ctx context.Context, account string, daoID uint32, amount string) (TxResult, error) {
	current, err := m.CurrentStake(ctx, account, daoID)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: stake: %w", ErrDataUnavailable, err)
	}
	value, err := ValidateStakeAmount(StakeRequest{Kind: KindUnstake, Amount: amount, CurrentStake: current})
	if err != nil {
		return TxResult{}, err
	}
	call, err := m.runner.Builder().Unstake(daoID, value)
	if err != nil {
		return TxResult{}, err
	}
	return m.run(ctx, KindUnstake.String(), account, value, []substrate.Call{call}, daoID)
}

// MoveStake moves amount from one DAO to another without unbonding.
func (m *StakeManager) MoveStake(ctx context.Context, account string, fromID, toID uint32, amount string) (TxResult, error) {
	if fromID == toID {
		return TxResult{}, invalid("to", "destination must differ from the source DAO")
	}
	current, err := m.CurrentStake(ctx, account, fromID)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: stake: %w", ErrDataUnavailable, err)
	}
	value, err := ValidateStakeAmount(StakeRequest{Kind: KindMove, Amount: amount, CurrentStake: current})
	if err != nil {
		return TxResult{}, err
	}
	call, err := m.runner.Builder().MoveStake(fromID, value, toID)
	if err != nil {
		return TxResult{}, err
	}
	return m.run(ctx, KindMove.String(), account, value, []substrate.Call{call}, fromID, toID)
}

func (m *StakeManager) WithdrawUnstaked(ctx context.Context, account string) (TxResult, error) {
	return m.run(ctx, "withdraw", account, decimal.Zero, []substrate.Call{m.runner.Builder().WithdrawUnstaked()})
}

// VestingOverview is the vesting state of an account.
type VestingOverview struct {
	Summary vesting.Summary
	Payouts []vesting.Payout
}

func (m *StakeManager) Vesting(ctx context.Context, account string) (VestingOverview, error) {
	schedules, lock, err := m.balances.VestingSchedules(ctx, account)
	if err != nil {
		return VestingOverview{}, err
	}
	balance, err := m.balances.AccountBalance(ctx, account)
	if err != nil {
		return VestingOverview{}, err
	}
	clock, err := m.balances.VestingClock(ctx)
	if err != nil {
		return VestingOverview{}, err
	}
	return VestingOverview{
		Summary: vesting.Summarize(schedules, lock, balance.Free, balance.Frozen, clock),
		Payouts: vesting.PayoutSchedule(schedules, clock),
	}, nil
}

// ClaimVesting unlocks every vested amount. ErrNothingToClaim is returned when nothing vested yet.
func (m *StakeManager) ClaimVesting(ctx context.Context, account string) (TxResult, error) {
	overview, err := m.Vesting(ctx, account)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: vesting: %w", ErrDataUnavailable, err)
	}
	if !overview.Summary.Claimable.IsPositive() {
		return TxResult{State: StateIdle}, ErrNothingToClaim
	}
	pallets := m.runner.Builder().Pallets
	return m.run(ctx, "vesting", account, overview.Summary.Claimable, []substrate.Call{vesting.ClaimCall(pallets)})
}

func (m *StakeManager) run(ctx context.Context, kind, account string, amount decimal.Decimal, calls []substrate.Call, daoIDs ...uint32) (TxResult, error) {
	return m.runner.Run(ctx, TxRequest{
		Kind:    kind,
		Account: account,
		Calls:   calls,
		Amount:  amount,
		OnSuccess: func(ctx context.Context, _ substrate.TxEvent) {
			m.refresh(ctx, account, daoIDs)
		},
	})
}

func (m *StakeManager) refresh(ctx context.Context, account string, daoIDs []uint32) {
	if m.claims == nil {
		return
	}
	session := m.claims.Session(account)
	for _, id := range daoIDs {
		stakes, err := m.source.StakerInfo(ctx, id, account)
		if err != nil {
			misc.Warnf(m.log, "unable to refresh stake of DAO %d: %v", id, err)
			continue
		}
		update := StakerInfoUpdated{PositionID: id}
		if pos, ok := PositionFromStakes(id, stakes); ok {
			update.Position = &pos
		}
		session.Apply(update)
	}
	if err := m.claims.ReloadBalance(ctx, account); err != nil {
		misc.Warnf(m.log, "unable to reload balance: %v", err)
	}
}
