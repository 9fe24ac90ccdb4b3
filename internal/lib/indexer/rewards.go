package indexer

import (
	"context"
	"fmt"

	"github.com/antihax/optional"
	"github.com/shopspring/decimal"
)

const stakerRewardsQuery = `
query totalRewardsClaimed($accountId: String) {
  stakers(where: {account_eq: $accountId}) {
    latestClaimBlock
    totalRewards
    totalUnclaimed
  }
}`

const daoRewardsQuery = `
query totalRewardsCoreClaimed($daoId: Int) {
  daos(where: {daoId_eq: $daoId}) {
    latestClaimBlock
    totalRewards
    totalUnclaimed
    daoId
  }
}`

const defaultMaxTries = 3

// Rewards are the indexed reward totals of a staker or DAO, in base units.
type Rewards struct {
	// Found is false when the indexer has no record, in which case the totals are zero.
	Found            bool
	LatestClaimBlock uint64
	TotalRewards     decimal.Decimal
	TotalUnclaimed   decimal.Decimal
}

type rewardsRecord struct {
	LatestClaimBlock uint64          `json:"latestClaimBlock"`
	TotalRewards     decimal.Decimal `json:"totalRewards"`
	TotalUnclaimed   decimal.Decimal `json:"totalUnclaimed"`
}

func (r rewardsRecord) toRewards() Rewards {
	return Rewards{
		Found:            true,
		LatestClaimBlock: r.LatestClaimBlock,
		TotalRewards:     r.TotalRewards,
		TotalUnclaimed:   r.TotalUnclaimed,
	}
}

func zeroRewards() Rewards {
	return Rewards{TotalRewards: decimal.Zero, TotalUnclaimed: decimal.Zero}
}

// QueryOpts are optional parameters of the reward queries.
type QueryOpts struct {
	// MaxTries bounds the attempts on transient failures (default 3).
	MaxTries optional.Int32
}

func (o *QueryOpts) maxTries() int {
	if o != nil && o.MaxTries.IsSet() && o.MaxTries.Value() > 0 {
		return int(o.MaxTries.Value())
	}
	return defaultMaxTries
}

// StakerRewards returns the reward totals of account, which must be encoded with the indexer's
// SS58 prefix.
func (c *Client) StakerRewards(ctx context.Context, account string, opts *QueryOpts) (Rewards, error) {
	var data struct {
		Stakers []rewardsRecord `json:"stakers"`
	}
	if err := c.query(ctx, opts.maxTries(), stakerRewardsQuery, map[string]any{"accountId": account}, &data); err != nil {
		return Rewards{}, fmt.Errorf("failed to query staker rewards of %s: %w", account, err)
	}
	if len(data.Stakers) == 0 {
		return zeroRewards(), nil
	}
	return data.Stakers[0].toRewards(), nil
}

// DAORewards returns the reward totals of a DAO.
func (c *Client) DAORewards(ctx context.Context, daoID uint32, opts *QueryOpts) (Rewards, error) {
	var data struct {
		Daos []rewardsRecord `json:"daos"`
	}
	if err := c.query(ctx, opts.maxTries(), daoRewardsQuery, map[string]any{"daoId": daoID}, &data); err != nil {
		return Rewards{}, fmt.Errorf("failed to query rewards of dao %d: %w", daoID, err)
	}
	if len(data.Daos) == 0 {
		return zeroRewards(), nil
	}
	return data.Daos[0].toRewards(), nil
}
