package staking

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/recorder"
	"github.com/invarch/daostake/internal/lib/substrate"
	"github.com/invarch/daostake/internal/lib/vesting"
)

const testAccount = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPallets() substrate.PalletIndexes {
	return substrate.PalletIndexes{OcifStaking: 71, Utility: 11, Vesting: 72}
}

type fakeSource struct {
	mu        sync.Mutex
	era       Era
	stakes    map[uint32][]EraStake
	events    []substrate.TxEvent
	submitErr error
	fee       *decimal.Decimal
	estimates int
	submitted []substrate.Call
	balance   AccountBalance
	schedules []vesting.Schedule
	lock      decimal.Decimal
	clock     vesting.Clock
	eraCh     chan Era
	infoCh    chan StakerInfoUpdate
}

func (f *fakeSource) CurrentEra(context.Context) (Era, error) { return f.era, nil }

func (f *fakeSource) StakerInfo(_ context.Context, positionID uint32, _ string) ([]EraStake, error) {
	return f.stakes[positionID], nil
}

func (f *fakeSource) SubscribeStakerInfo(context.Context, string, []uint32) (<-chan StakerInfoUpdate, error) {
	if f.infoCh == nil {
		return nil, errors.New("not supported")
	}
	return f.infoCh, nil
}

func (f *fakeSource) SubscribeCurrentEra(context.Context) (<-chan Era, error) {
	if f.eraCh == nil {
		return nil, errors.New("not supported")
	}
	return f.eraCh, nil
}

func (f *fakeSource) SubmitExtrinsic(_ context.Context, _ substrate.Signer, call substrate.Call) (<-chan substrate.TxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, call)
	ch := make(chan substrate.TxEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeSource) EstimateFee(context.Context, string, substrate.Call) (decimal.Decimal, error) {
	f.mu.Lock()
	f.estimates++
	f.mu.Unlock()
	if f.fee == nil {
		return decimal.Zero, ErrDataUnavailable
	}
	return *f.fee, nil
}

func (f *fakeSource) AccountBalance(context.Context, string) (AccountBalance, error) {
	return f.balance, nil
}

func (f *fakeSource) VestingSchedules(context.Context, string) ([]vesting.Schedule, decimal.Decimal, error) {
	return f.schedules, f.lock, nil
}

func (f *fakeSource) VestingClock(context.Context) (vesting.Clock, error) { return f.clock, nil }

func (f *fakeSource) feeEstimates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.estimates
}

func (f *fakeSource) lastSubmitted() substrate.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[len(f.submitted)-1]
}

type fakeAuthorizer struct {
	deny  bool
	calls int
}

func (a *fakeAuthorizer) Authorize(context.Context, string, string) (substrate.Signer, error) {
	a.calls++
	if a.deny {
		return nil, ErrAuthorizationDenied
	}
	seed := make([]byte, ed25519.SeedSize)
	return substrate.NewKeySigner(ed25519.NewKeyFromSeed(seed), 42), nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *fakeNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *fakeNotifier) terminal() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, note := range n.notes {
		if note.Terminal {
			out = append(out, note)
		}
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []recorder.TxOutcome
}

func (r *fakeRecorder) RecordOutcome(o *recorder.TxOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, *o)
	return nil
}

func (r *fakeRecorder) Recent(string, int) ([]recorder.TxOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes, nil
}

func (r *fakeRecorder) Close() error { return nil }

type fakeIndex struct {
	totals RewardTotals
	err    error
	calls  int
}

func (i *fakeIndex) RewardTotals(context.Context, string) (RewardTotals, error) {
	i.calls++
	return i.totals, i.err
}

type harness struct {
	source     *fakeSource
	authorizer *fakeAuthorizer
	notifier   *fakeNotifier
	recorder   *fakeRecorder
	index      *fakeIndex
	runner     *TxRunner
}

func newHarness() *harness {
	h := &harness{
		source:     &fakeSource{era: 10, stakes: map[uint32][]EraStake{}},
		authorizer: &fakeAuthorizer{},
		notifier:   &fakeNotifier{},
		recorder:   &fakeRecorder{},
		index:      &fakeIndex{err: ErrDataUnavailable},
	}
	h.runner = NewTxRunner(testLogger(), h.source, h.authorizer, h.notifier, h.recorder, CallBuilder{Pallets: testPallets()})
	return h
}

func (h *harness) orchestrator() *ClaimOrchestrator {
	return NewClaimOrchestrator(testLogger(), h.source, h.runner, h.index, h.source)
}
