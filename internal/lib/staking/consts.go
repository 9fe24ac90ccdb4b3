package staking

import (
	"github.com/shopspring/decimal"
)

const (
	// Storage item names in the ocifStaking pallet
	PalletOcifStaking        = "OcifStaking"
	ItemCurrentEra           = "CurrentEra"
	ItemGeneralStakerInfo    = "GeneralStakerInfo"
	ItemRegisteredCore       = "RegisteredCore"
	ItemCoreEraStake         = "CoreEraStake"
	ItemGeneralEraInfo       = "GeneralEraInfo"
	ItemNextEraStartingBlock = "NextEraStartingBlock"

	// Call indexes in the ocifStaking pallet
	CallStake              = 0
	CallUnstake            = 1
	CallWithdrawUnstaked   = 2
	CallStakerClaimRewards = 3
	CallMoveStake          = 6

	// TokenDecimals is the number of decimals of the staking token.
	TokenDecimals = 12
)

var (
	oneToken = decimal.New(1, TokenDecimals)

	// MinStakeAmount is the minimum initial stake into a DAO (5 tokens).
	MinStakeAmount = decimal.New(5, TokenDecimals)

	// FeeReserve is kept back by MaxStakeAmount so the account can still pay fees.
	FeeReserve = oneToken

	// FeeBufferMultiplier pads the estimated fee when computing the restake split.
	FeeBufferMultiplier = decimal.New(120, -2)
)
