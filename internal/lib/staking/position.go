package staking

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Era is a staking era number.
type Era int64

// StakePosition is a user's stake in a single DAO.
type StakePosition struct {
	PositionID     uint32
	LastClaimedEra Era
	StakedAmount   decimal.Decimal
}

// EarliestUnclaimedEra is the first era whose reward has not been claimed.
func (p StakePosition) EarliestUnclaimedEra() Era {
	return p.LastClaimedEra + 1
}

// EraStake is a single entry of the on-chain staker info: the amount staked as of an era.
type EraStake struct {
	Era    Era
	Staked decimal.Decimal
}

// PositionFromStakes builds the position for a DAO from its on-chain stake history. The chain
// removes entries once their rewards are claimed so the first entry is the earliest unclaimed era.
// It returns false when there is no history, which means no position.
func PositionFromStakes(positionID uint32, stakes []EraStake) (StakePosition, bool) {
	if len(stakes) == 0 {
		return StakePosition{}, false
	}
	earliest := stakes[0].Era
	for _, stake := range stakes[1:] {
		earliest = min(earliest, stake.Era)
	}
	return StakePosition{
		PositionID:     positionID,
		LastClaimedEra: earliest - 1,
		StakedAmount:   stakes[len(stakes)-1].Staked,
	}, true
}

// PositionEra pairs a position with its earliest unclaimed era.
type PositionEra struct {
	PositionID  uint32
	EarliestEra Era
}

// UnclaimedState is the set of positions with claimable eras, ordered by position id.
type UnclaimedState struct {
	Positions []PositionEra
	MaxEraGap Era
}

func (u UnclaimedState) Empty() bool {
	return len(u.Positions) == 0
}

// EraCount is the number of claimable eras across every position.
func (u UnclaimedState) EraCount(currentEra Era) int {
	var count int
	for _, pos := range u.Positions {
		if pos.EarliestEra < currentEra {
			count += int(currentEra - pos.EarliestEra)
		}
	}
	return count
}

func (u UnclaimedState) Contains(positionID uint32) bool {
	return slices.ContainsFunc(u.Positions, func(p PositionEra) bool { return p.PositionID == positionID })
}

// RewardTotals come from the reward index service.
type RewardTotals struct {
	TotalClaimed     decimal.Decimal
	TotalUnclaimed   decimal.Decimal
	LatestClaimBlock uint64
}

type MetadataKind int

const (
	MetadataAbsent MetadataKind = iota
	MetadataPresent
)

// PositionMetadata is the display metadata of a DAO. It is resolved once when DAOs are loaded so
// callers switch on Kind instead of probing fields.
type PositionMetadata struct {
	Kind        MetadataKind
	Name        string
	Description string
	Image       string
}

func NewMetadata(name, description, image string) PositionMetadata {
	if name == "" && description == "" && image == "" {
		return PositionMetadata{Kind: MetadataAbsent}
	}
	return PositionMetadata{Kind: MetadataPresent, Name: name, Description: description, Image: image}
}

// DisplayName returns the DAO name, or a generic label when there is no metadata.
func (m PositionMetadata) DisplayName(positionID uint32) string {
	switch m.Kind {
	case MetadataPresent:
		if m.Name != "" {
			return m.Name
		}
	}
	return fmt.Sprintf("DAO #%d", positionID)
}

// DAO is a registered staking target.
type DAO struct {
	ID       uint32
	Account  string
	Metadata PositionMetadata
}

// DAOEraStake is the stake of a DAO in a given era.
type DAOEraStake struct {
	DAOID           uint32
	TotalStaked     decimal.Decimal
	NumberOfStakers uint32
	RewardClaimed   bool
	Active          bool
}

// EraInfo is the network wide staking info for an era.
type EraInfo struct {
	StakerRewards decimal.Decimal
	CoreRewards   decimal.Decimal
	Staked        decimal.Decimal
	ActiveStake   decimal.Decimal
	Locked        decimal.Decimal
}

// AccountBalance is the balance of an account in base units.
type AccountBalance struct {
	Free     decimal.Decimal
	Reserved decimal.Decimal
	Frozen   decimal.Decimal
}

// Available is the transferable part of the balance.
func (b AccountBalance) Available() decimal.Decimal {
	available := b.Free.Sub(b.Frozen)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}
