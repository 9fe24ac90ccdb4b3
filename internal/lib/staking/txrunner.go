/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/recorder"
	"github.com/invarch/daostake/internal/lib/substrate"
)

// TxRequest is a transaction to authorize, submit and follow to a final state.
type TxRequest struct {
	Kind    string
	Account string
	// Calls are submitted atomically as one batch (or as-is when there is only one).
	Calls []substrate.Call
	// Prepare runs once the account authorized signing. The calls it returns are appended to Calls.
	Prepare func(ctx context.Context) ([]substrate.Call, error)
	// Amount is informational, recorded with the outcome.
	Amount decimal.Decimal
	// OnSuccess runs exactly once when the transaction is finalized.
	OnSuccess func(ctx context.Context, event substrate.TxEvent)
	// SuccessMessage overrides the notification sent on success.
	SuccessMessage string
}

func (r TxRequest) describe() string {
	var names []string
	for _, call := range r.Calls {
		names = append(names, call.String())
	}
	return strings.Join(names, ", ")
}

type TxResult struct {
	State     TxState
	BlockHash string
}

// TxRunner drives a transaction through authorization, submission and its lifecycle events. At most
// one transaction per account is in flight at a time.
type TxRunner struct {
	log        *slog.Logger
	source     ChainDataSource
	authorizer WalletAuthorizer
	notifier   Notifier
	recorder   recorder.Recorder
	builder    CallBuilder

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewTxRunner(log *slog.Logger, source ChainDataSource, authorizer WalletAuthorizer, notifier Notifier, rec recorder.Recorder, builder CallBuilder) *TxRunner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &TxRunner{
		log:        log,
		source:     source,
		authorizer: authorizer,
		notifier:   notifier,
		recorder:   rec,
		builder:    builder,
		inFlight:   map[string]bool{},
	}
}

func (r *TxRunner) Builder() CallBuilder {
	return r.builder
}

func (r *TxRunner) acquire(account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[account] {
		return false
	}
	r.inFlight[account] = true
	return true
}

func (r *TxRunner) release(account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, account)
}

// InFlight reports whether a transaction of account is being processed.
func (r *TxRunner) InFlight(account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[account]
}

// Run processes req and returns once it reached a terminal state. Failures are reported to the
// notifier and returned; success returns a nil error.
func (r *TxRunner) Run(ctx context.Context, req TxRequest) (TxResult, error) {
	if !r.acquire(req.Account) {
		return TxResult{State: StateIdle}, ErrTxInFlight
	}
	defer r.release(req.Account)

	tx := &trackedTx{runner: r, req: req}
	tx.machine.advance(StateAwaitingAuthorization)

	signer, err := r.authorizer.Authorize(ctx, req.Account, req.describe())
	if err != nil {
		if !errors.Is(err, ErrAuthorizationDenied) {
			err = fmt.Errorf("%w: %w", ErrAuthorizationDenied, err)
		}
		return tx.finish(ctx, StateError, substrate.TxEvent{}, err)
	}
	if req.Prepare != nil {
		extra, err := req.Prepare(ctx)
		if err != nil {
			return tx.finish(ctx, StateError, substrate.TxEvent{}, &TransactionError{Detail: err.Error(), Err: err})
		}
		tx.req.Calls = append(slices.Clip(req.Calls), extra...)
	}
	call, err := r.builder.Batch(tx.req.Calls)
	if err != nil {
		return tx.finish(ctx, StateError, substrate.TxEvent{}, &TransactionError{Detail: err.Error(), Err: err})
	}

	tx.machine.advance(StateBroadcasting)
	// stops watching the status stream once Run returns
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	events, err := r.source.SubmitExtrinsic(watchCtx, signer, call)
	if err != nil {
		return tx.finish(ctx, submissionFailureState(err), substrate.TxEvent{}, submissionError(err))
	}

	for {
		select {
		case <-ctx.Done():
			return tx.finish(ctx, StateError, substrate.TxEvent{}, &TransactionError{Detail: "cancelled while waiting for transaction", Err: ctx.Err()})
		case event, ok := <-events:
			if !ok {
				return tx.finish(ctx, StateError, substrate.TxEvent{}, &TransactionError{Detail: "transaction status stream ended"})
			}
			if result, done, err := tx.handle(ctx, event); done {
				return result, err
			}
		}
	}
}

// submissionFailureState maps a rejected submission to a state: the node rejects invalid
// transactions (1010, 1011) and pool conflicts (1012-1014) with rpc errors.
func submissionFailureState(err error) TxState {
	var rpcErr *substrate.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case 1010, 1011:
			return StateInvalid
		case 1012, 1013, 1014:
			return StateDropped
		}
	}
	return StateError
}

func submissionError(err error) error {
	switch submissionFailureState(err) {
	case StateInvalid:
		return fmt.Errorf("%w: %w", ErrTransactionInvalid, err)
	case StateDropped:
		return fmt.Errorf("%w: %w", ErrTransactionDropped, err)
	}
	return &TransactionError{Detail: err.Error(), Err: err}
}

type trackedTx struct {
	runner  *TxRunner
	req     TxRequest
	machine txMachine
}

// handle applies one lifecycle event. done is set once a terminal state was reached.
func (t *trackedTx) handle(ctx context.Context, event substrate.TxEvent) (TxResult, bool, error) {
	switch event.Status {
	case substrate.TxInBlock:
		if t.machine.advance(StateExecuted) {
			t.runner.notifier.Notify(Notification{
				Level:   NotifyInfo,
				Account: t.req.Account,
				Kind:    t.req.Kind,
				Message: fmt.Sprintf("included in block %s, waiting for finalization", event.BlockHash),
			})
		}
	case substrate.TxFinalized:
		// a finalized block implies inclusion, the node may not have reported it separately
		t.machine.advance(StateExecuted)
		return t.tryFinish(ctx, StateSuccess, event, nil)
	case substrate.TxInvalid:
		return t.tryFinish(ctx, StateInvalid, event, ErrTransactionInvalid)
	case substrate.TxDropped:
		return t.tryFinish(ctx, StateDropped, event, fmt.Errorf("%w: %s", ErrTransactionDropped, event.Detail))
	case substrate.TxError:
		return t.tryFinish(ctx, StateError, event, &TransactionError{Detail: event.Detail})
	}
	return TxResult{State: t.machine.state}, false, nil
}

func (t *trackedTx) tryFinish(ctx context.Context, state TxState, event substrate.TxEvent, err error) (TxResult, bool, error) {
	if !canAdvance(t.machine.state, state) {
		misc.Debugf(t.runner.log, "ignoring %s event in state %s", state, t.machine.state)
		return TxResult{State: t.machine.state}, false, nil
	}
	result, err := t.finish(ctx, state, event, err)
	return result, true, err
}

func canAdvance(from, to TxState) bool {
	m := txMachine{state: from}
	return m.advance(to)
}

// finish moves to the terminal state and performs the terminal side effects exactly once.
func (t *trackedTx) finish(ctx context.Context, state TxState, event substrate.TxEvent, err error) (TxResult, error) {
	r := t.runner
	if !t.machine.advance(state) {
		// can't happen with the call sites above but never report a state we didn't reach
		return TxResult{State: t.machine.state}, err
	}
	result := TxResult{State: state, BlockHash: event.BlockHash}

	if state == StateSuccess && t.req.OnSuccess != nil {
		t.req.OnSuccess(ctx, event)
	}

	notification := Notification{Account: t.req.Account, Kind: t.req.Kind, Terminal: true, Err: err}
	switch state {
	case StateSuccess:
		notification.Level = NotifySuccess
		notification.Message = t.req.SuccessMessage
		if notification.Message == "" {
			notification.Message = fmt.Sprintf("%s finalized in block %s", t.req.Kind, event.BlockHash)
		}
	case StateInvalid:
		notification.Level = NotifyError
		notification.Message = "invalid transaction"
	case StateDropped:
		notification.Level = NotifyError
		notification.Message = "transaction dropped"
	default:
		notification.Level = NotifyError
		notification.Message = fmt.Sprintf("%s failed", t.req.Kind)
	}
	r.notifier.Notify(notification)

	detail := event.Detail
	if err != nil {
		detail = err.Error()
	}
	if recErr := r.recorder.RecordOutcome(&recorder.TxOutcome{
		At:        time.Now(),
		Account:   t.req.Account,
		Kind:      t.req.Kind,
		State:     state.String(),
		Calls:     len(t.req.Calls),
		Amount:    t.req.Amount.String(),
		BlockHash: event.BlockHash,
		Detail:    detail,
	}); recErr != nil {
		misc.Warnf(r.log, "unable to record %s outcome: %v", t.req.Kind, recErr)
	}
	promTxOutcomes.WithLabelValues(t.req.Kind, state.String()).Inc()
	return result, err
}
