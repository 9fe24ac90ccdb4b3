/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package staking

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/indexer"
	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/substrate"
)

// RewardIndexService returns the indexed reward totals of an account, always fetched fresh.
type RewardIndexService interface {
	RewardTotals(ctx context.Context, account string) (RewardTotals, error)
}

// IndexerRewards serves RewardIndexService from the indexer, re-encoding accounts with the
// indexer's SS58 prefix.
type IndexerRewards struct {
	Client *indexer.Client
	Prefix uint16
}

func (i IndexerRewards) RewardTotals(ctx context.Context, account string) (RewardTotals, error) {
	pub, _, err := substrate.DecodeAddress(account)
	if err != nil {
		return RewardTotals{}, err
	}
	rewards, err := i.Client.StakerRewards(ctx, substrate.EncodeAddress(pub, i.Prefix), nil)
	if err != nil {
		return RewardTotals{}, err
	}
	return RewardTotals{
		TotalClaimed:     rewards.TotalRewards,
		TotalUnclaimed:   rewards.TotalUnclaimed,
		LatestClaimBlock: rewards.LatestClaimBlock,
	}, nil
}

// ClaimRequest is one claim-all attempt.
type ClaimRequest struct {
	Account    string
	Unclaimed  UnclaimedState
	CurrentEra Era
	// AutoRestake appends a stake of the claimed rewards, split evenly, into every position with stake.
	AutoRestake    bool
	TotalUnclaimed decimal.Decimal
	PositionStakes map[uint32]decimal.Decimal
}

// ClaimOrchestrator claims every unclaimed era of an account in a single batch and applies the
// outcome to the account's session.
type ClaimOrchestrator struct {
	log      *slog.Logger
	source   ChainDataSource
	runner   *TxRunner
	index    RewardIndexService
	balances BalanceSource

	sync.RWMutex
	sessions map[string]*Session
}

func NewClaimOrchestrator(log *slog.Logger, source ChainDataSource, runner *TxRunner, index RewardIndexService, balances BalanceSource) *ClaimOrchestrator {
	return &ClaimOrchestrator{
		log:      log,
		source:   source,
		runner:   runner,
		index:    index,
		balances: balances,
		sessions: map[string]*Session{},
	}
}

// Session returns the session of account, creating it on first use.
func (o *ClaimOrchestrator) Session(account string) *Session {
	o.RLock()
	session, found := o.sessions[account]
	o.RUnlock()
	if found {
		return session
	}
	o.Lock()
	defer o.Unlock()
	if session, found = o.sessions[account]; !found {
		session = newSession(account)
		o.sessions[account] = session
	}
	return session
}

// Load performs a full (non subscription) load of the account's positions, current era, totals
// and balance into its session.
func (o *ClaimOrchestrator) Load(ctx context.Context, account string, daoIDs []uint32) (SessionSnapshot, error) {
	session := o.Session(account)
	era, err := o.source.CurrentEra(ctx)
	if err != nil {
		return SessionSnapshot{}, err
	}
	positions, err := LoadPositions(ctx, o.source, account, daoIDs)
	if err != nil {
		return SessionSnapshot{}, err
	}
	session.Apply(EraAdvanced{Era: era})
	staked := map[uint32]bool{}
	for _, pos := range positions {
		session.Apply(StakerInfoUpdated{PositionID: pos.PositionID, Position: &pos})
		staked[pos.PositionID] = true
	}
	for _, id := range daoIDs {
		if !staked[id] {
			session.Apply(StakerInfoUpdated{PositionID: id})
		}
	}
	if err := o.RefreshTotals(ctx, account); err != nil {
		misc.Warnf(o.log, "reward totals unavailable for %s: %v", account, err)
	}
	if err := o.ReloadBalance(ctx, account); err != nil {
		misc.Warnf(o.log, "balance unavailable for %s: %v", account, err)
	}
	return session.Snapshot(), nil
}

// RequestFor builds a claim request from the session state of account.
func (o *ClaimOrchestrator) RequestFor(account string, autoRestake bool) ClaimRequest {
	snap := o.Session(account).Snapshot()
	stakes := map[uint32]decimal.Decimal{}
	for id, pos := range snap.Aggregate.Positions {
		stakes[id] = pos.StakedAmount
	}
	return ClaimRequest{
		Account:        account,
		Unclaimed:      snap.Aggregate.Unclaimed,
		CurrentEra:     snap.Aggregate.CurrentEra,
		AutoRestake:    autoRestake,
		TotalUnclaimed: snap.Totals.TotalUnclaimed,
		PositionStakes: stakes,
	}
}

// ClaimRewards claims every unclaimed era in req. It returns ErrNothingToClaim without doing
// anything when there is nothing to claim and ErrClaimInFlight when a claim of the account is
// already waiting.
func (o *ClaimOrchestrator) ClaimRewards(ctx context.Context, req ClaimRequest) (TxResult, error) {
	if req.Account == "" || req.Unclaimed.Empty() {
		return TxResult{State: StateIdle}, ErrNothingToClaim
	}
	builder := o.runner.Builder()
	calls := builder.ClaimCalls(req.Unclaimed, req.CurrentEra)
	if len(calls) == 0 {
		return TxResult{State: StateIdle}, ErrNothingToClaim
	}

	session := o.Session(req.Account)
	if !session.beginClaim() {
		return TxResult{State: StateIdle}, ErrClaimInFlight
	}
	result := TxResult{State: StateIdle}
	defer func() { session.endClaim(result.State) }()

	claiming := 0
	for _, pos := range req.Unclaimed.Positions {
		if pos.EarliestEra < req.CurrentEra {
			claiming++
		}
	}
	txReq := TxRequest{
		Kind:           "claim",
		Account:        req.Account,
		Calls:          calls,
		Amount:         req.TotalUnclaimed,
		SuccessMessage: fmt.Sprintf("claimed %d eras across %d DAOs", len(calls), claiming),
		OnSuccess: func(ctx context.Context, _ substrate.TxEvent) {
			o.onClaimSuccess(ctx, session)
		},
	}
	if req.AutoRestake {
		// restake calls are built after authorization
		txReq.Prepare = func(ctx context.Context) ([]substrate.Call, error) {
			return o.restakeCalls(ctx, req, calls), nil
		}
	}

	var err error
	result, err = o.runner.Run(ctx, txReq)
	return result, err
}

// restakeCalls returns the stake calls restaking the unclaimed rewards. Any problem skips the
// restake with a notification; the claim itself still proceeds.
func (o *ClaimOrchestrator) restakeCalls(ctx context.Context, req ClaimRequest, claimCalls []substrate.Call) []substrate.Call {
	var eligible []uint32
	for _, id := range slices.Sorted(maps.Keys(req.PositionStakes)) {
		if req.PositionStakes[id].IsPositive() {
			eligible = append(eligible, id)
		}
	}
	skip := func(reason error) []substrate.Call {
		o.runner.notifier.Notify(Notification{
			Level:   NotifyError,
			Account: req.Account,
			Kind:    "restake",
			Message: "auto-restake skipped",
			Err:     reason,
		})
		return nil
	}
	if len(eligible) == 0 {
		return skip(ErrInvalidPositionCount)
	}

	builder := o.runner.Builder()
	var fee *decimal.Decimal
	if batch, err := builder.Batch(claimCalls); err == nil {
		if estimate, err := o.source.EstimateFee(ctx, req.Account, batch); err == nil {
			fee = &estimate
		} else {
			misc.Warnf(o.log, "fee estimate unavailable, restaking without fee buffer: %v", err)
		}
	}
	amount, err := AllocateRestake(req.TotalUnclaimed, fee, len(eligible))
	if err != nil {
		return skip(err)
	}
	if !amount.IsPositive() {
		return skip(ErrFeeExceedsRewards)
	}
	var calls []substrate.Call
	for _, id := range eligible {
		call, err := builder.Stake(id, amount)
		if err != nil {
			return skip(err)
		}
		calls = append(calls, call)
	}
	misc.Infof(o.log, "restaking %s into %d DAOs", substrate.FormattedAmount(amount, TokenDecimals), len(eligible))
	return calls
}

// onClaimSuccess applies a finalized claim once: clears the unclaimed state, accumulates the
// claimed total and refreshes the index and balance.
func (o *ClaimOrchestrator) onClaimSuccess(ctx context.Context, session *Session) {
	session.applyClaimSuccess()
	if err := o.RefreshTotals(ctx, session.Account()); err != nil {
		misc.Warnf(o.log, "unable to refresh reward totals after claim: %v", err)
	}
	if err := o.ReloadBalance(ctx, session.Account()); err != nil {
		misc.Warnf(o.log, "unable to reload balance after claim: %v", err)
	}
}

// RefreshTotals re-queries the reward index. After a successful claim the local totals are kept
// until the index confirms, so the claim succeeded flag is only cleared on success.
func (o *ClaimOrchestrator) RefreshTotals(ctx context.Context, account string) error {
	if o.index == nil {
		return ErrDataUnavailable
	}
	session := o.Session(account)
	pending := session.takeClaimSucceeded()
	totals, err := o.index.RewardTotals(ctx, account)
	if err != nil {
		if pending {
			session.setClaimSucceeded()
		}
		return err
	}
	session.SetTotals(totals)
	return nil
}

func (o *ClaimOrchestrator) ReloadBalance(ctx context.Context, account string) error {
	if o.balances == nil {
		return ErrDataUnavailable
	}
	balance, err := o.balances.AccountBalance(ctx, account)
	if err != nil {
		return err
	}
	o.Session(account).SetBalance(balance)
	return nil
}
