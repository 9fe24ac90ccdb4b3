package staking

import (
	"maps"
	"sync"

	"github.com/shopspring/decimal"
)

// Session is the state kept for one account: the aggregate fed by chain subscriptions, the indexed
// reward totals, the balance and the claim flags.
type Session struct {
	account string

	sync.RWMutex
	aggregate      AggregateState
	totals         RewardTotals
	balance        AccountBalance
	waiting        bool
	claimSucceeded bool
	lastOutcome    TxState
}

func newSession(account string) *Session {
	return &Session{account: account, aggregate: NewAggregateState()}
}

// SessionSnapshot is a point in time copy of a Session.
type SessionSnapshot struct {
	Account        string
	Aggregate      AggregateState
	Totals         RewardTotals
	Balance        AccountBalance
	Waiting        bool
	ClaimSucceeded bool
	LastOutcome    TxState
}

func (s *Session) Account() string {
	return s.account
}

func (s *Session) Snapshot() SessionSnapshot {
	s.RLock()
	defer s.RUnlock()
	aggregate := s.aggregate
	aggregate.Positions = maps.Clone(s.aggregate.Positions)
	return SessionSnapshot{
		Account:        s.account,
		Aggregate:      aggregate,
		Totals:         s.totals,
		Balance:        s.balance,
		Waiting:        s.waiting,
		ClaimSucceeded: s.claimSucceeded,
		LastOutcome:    s.lastOutcome,
	}
}

// Apply reduces event into the session's aggregate and returns the new aggregate.
func (s *Session) Apply(event Event) AggregateState {
	s.Lock()
	s.aggregate = Reduce(s.aggregate, event)
	aggregate := s.aggregate
	s.Unlock()
	updateAggregateMetrics(s.account, aggregate)
	return aggregate
}

func (s *Session) SetTotals(totals RewardTotals) {
	s.Lock()
	s.totals = totals
	s.Unlock()
	updateTotalsMetrics(s.account, totals)
}

func (s *Session) SetBalance(balance AccountBalance) {
	s.Lock()
	defer s.Unlock()
	s.balance = balance
}

// beginClaim sets the waiting flag, failing if a claim is already waiting.
func (s *Session) beginClaim() bool {
	s.Lock()
	defer s.Unlock()
	if s.waiting {
		return false
	}
	s.waiting = true
	return true
}

func (s *Session) endClaim(outcome TxState) {
	s.Lock()
	defer s.Unlock()
	s.waiting = false
	s.lastOutcome = outcome
}

// applyClaimSuccess clears the unclaimed state and moves the unclaimed total into the claimed total.
func (s *Session) applyClaimSuccess() {
	s.Lock()
	s.aggregate = Reduce(s.aggregate, ClaimSucceeded{})
	s.totals.TotalClaimed = s.totals.TotalClaimed.Add(s.totals.TotalUnclaimed)
	s.totals.TotalUnclaimed = decimal.Zero
	s.claimSucceeded = true
	aggregate, totals := s.aggregate, s.totals
	s.Unlock()
	updateAggregateMetrics(s.account, aggregate)
	updateTotalsMetrics(s.account, totals)
}

// takeClaimSucceeded returns and clears the claim succeeded flag.
func (s *Session) takeClaimSucceeded() bool {
	s.Lock()
	defer s.Unlock()
	succeeded := s.claimSucceeded
	s.claimSucceeded = false
	return succeeded
}

func (s *Session) setClaimSucceeded() {
	s.Lock()
	defer s.Unlock()
	s.claimSucceeded = true
}
