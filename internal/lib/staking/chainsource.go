/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package staking

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mailgun/holster/v4/syncutil"
	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/misc"
	"github.com/invarch/daostake/internal/lib/substrate"
	"github.com/invarch/daostake/internal/lib/vesting"
)

// StakerInfoUpdate is the latest stake history of an account in a DAO.
type StakerInfoUpdate struct {
	PositionID uint32
	Stakes     []EraStake
}

// ChainDataSource is the chain access the claim flow depends on.
type ChainDataSource interface {
	CurrentEra(ctx context.Context) (Era, error)
	StakerInfo(ctx context.Context, positionID uint32, account string) ([]EraStake, error)
	SubscribeStakerInfo(ctx context.Context, account string, positionIDs []uint32) (<-chan StakerInfoUpdate, error)
	SubscribeCurrentEra(ctx context.Context) (<-chan Era, error)
	SubmitExtrinsic(ctx context.Context, signer substrate.Signer, call substrate.Call) (<-chan substrate.TxEvent, error)
	EstimateFee(ctx context.Context, account string, call substrate.Call) (decimal.Decimal, error)
}

// DAODirectory lists DAOs and their stake.
type DAODirectory interface {
	RegisteredDAOs(ctx context.Context) ([]DAO, error)
	DAOEraStake(ctx context.Context, daoID uint32, era Era) (DAOEraStake, error)
	EraInfo(ctx context.Context, era Era) (EraInfo, error)
}

// BalanceSource provides account balances and vesting.
type BalanceSource interface {
	AccountBalance(ctx context.Context, account string) (AccountBalance, error)
	VestingSchedules(ctx context.Context, account string) ([]vesting.Schedule, decimal.Decimal, error)
	VestingClock(ctx context.Context) (vesting.Clock, error)
}

// relayBlockTime is the block time of the relay chain whose block number drives vesting.
const relayBlockTime = 6 * time.Second

// SubstrateSource implements ChainDataSource, DAODirectory and BalanceSource against a node.
type SubstrateSource struct {
	log     *slog.Logger
	client  *substrate.Client
	network substrate.NetworkConfig

	sync.RWMutex
	genesisHash []byte
}

func NewSubstrateSource(log *slog.Logger, client *substrate.Client, network substrate.NetworkConfig) *SubstrateSource {
	return &SubstrateSource{log: log, client: client, network: network}
}

func (s *SubstrateSource) Network() substrate.NetworkConfig {
	return s.network
}

func (s *SubstrateSource) publicKey(account string) (substrate.PublicKey, error) {
	return substrate.DecodeAddressForNetwork(account, s.network.SS58Prefix)
}

func currentEraKey() substrate.StorageKey {
	return substrate.NewStorageKey(PalletOcifStaking, ItemCurrentEra)
}

func stakerInfoKey(positionID uint32, pub substrate.PublicKey) substrate.StorageKey {
	return substrate.NewStorageKey(PalletOcifStaking, ItemGeneralStakerInfo,
		substrate.U32Key(substrate.Blake2_128Concat, positionID),
		substrate.AccountKey(substrate.Blake2_128Concat, pub))
}

func (s *SubstrateSource) CurrentEra(ctx context.Context) (Era, error) {
	data, err := s.client.GetStorage(ctx, currentEraKey())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch current era: %w", err)
	}
	return decodeEra(data)
}

func (s *SubstrateSource) StakerInfo(ctx context.Context, positionID uint32, account string) ([]EraStake, error) {
	pub, err := s.publicKey(account)
	if err != nil {
		return nil, err
	}
	data, err := s.client.GetStorage(ctx, stakerInfoKey(positionID, pub))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch staker info for dao %d: %w", positionID, err)
	}
	return decodeStakerInfo(data)
}

// SubscribeStakerInfo delivers the current staker info of every DAO and then every change. The
// channel closes when ctx is cancelled or the connection drops.
func (s *SubstrateSource) SubscribeStakerInfo(ctx context.Context, account string, positionIDs []uint32) (<-chan StakerInfoUpdate, error) {
	pub, err := s.publicKey(account)
	if err != nil {
		return nil, err
	}
	var (
		keys  []substrate.StorageKey
		byKey = map[string]uint32{}
	)
	for _, id := range positionIDs {
		key := stakerInfoKey(id, pub)
		keys = append(keys, key)
		byKey[key.Hex()] = id
	}
	sub, err := s.client.SubscribeStorage(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to staker info: %w", err)
	}
	updates := make(chan StakerInfoUpdate, len(positionIDs))
	go s.pump(ctx, sub, func(change substrate.StorageChange) {
		id, found := byKey[change.Key.Hex()]
		if !found {
			return
		}
		stakes, err := decodeStakerInfo(change.Value)
		if err != nil {
			misc.Warnf(s.log, "unable to decode staker info for dao %d: %v", id, err)
			return
		}
		select {
		case updates <- StakerInfoUpdate{PositionID: id, Stakes: stakes}:
		case <-ctx.Done():
		}
	}, func() { close(updates) })
	return updates, nil
}

func (s *SubstrateSource) SubscribeCurrentEra(ctx context.Context) (<-chan Era, error) {
	sub, err := s.client.SubscribeStorage(ctx, []substrate.StorageKey{currentEraKey()})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to current era: %w", err)
	}
	eras := make(chan Era, 1)
	go s.pump(ctx, sub, func(change substrate.StorageChange) {
		era, err := decodeEra(change.Value)
		if err != nil {
			misc.Warnf(s.log, "unable to decode current era: %v", err)
			return
		}
		select {
		case eras <- era:
		case <-ctx.Done():
		}
	}, func() { close(eras) })
	return eras, nil
}

// pump feeds every storage change of sub to handle until ctx is done or the subscription ends.
func (s *SubstrateSource) pump(ctx context.Context, sub *substrate.Subscription, handle func(substrate.StorageChange), done func()) {
	defer done()
	defer sub.Unsubscribe(context.WithoutCancel(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Notifications():
			if !ok {
				misc.Warnf(s.log, "storage subscription %s ended", sub.ID())
				return
			}
			changes, err := substrate.ParseStorageChangeSet(raw)
			if err != nil {
				misc.Warnf(s.log, "bad storage notification: %v", err)
				continue
			}
			for _, change := range changes {
				handle(change)
			}
		}
	}
}

func (s *SubstrateSource) extrinsicParams(ctx context.Context, address string) (substrate.ExtrinsicParams, error) {
	s.RLock()
	genesis := s.genesisHash
	s.RUnlock()
	if genesis == nil {
		var err error
		if genesis, err = s.client.GenesisHash(ctx); err != nil {
			return substrate.ExtrinsicParams{}, fmt.Errorf("failed to fetch genesis hash: %w", err)
		}
		s.Lock()
		s.genesisHash = genesis
		s.Unlock()
	}
	// the runtime can upgrade while we run, so the version is always fetched
	version, err := s.client.RuntimeVersion(ctx)
	if err != nil {
		return substrate.ExtrinsicParams{}, fmt.Errorf("failed to fetch runtime version: %w", err)
	}
	nonce, err := s.client.AccountNextIndex(ctx, address)
	if err != nil {
		return substrate.ExtrinsicParams{}, fmt.Errorf("failed to fetch nonce for %s: %w", address, err)
	}
	return substrate.ExtrinsicParams{
		SpecVersion:       version.SpecVersion,
		TxVersion:         version.TransactionVersion,
		GenesisHash:       genesis,
		Nonce:             nonce,
		CheckMetadataHash: s.network.CheckMetadataHash,
	}, nil
}

func (s *SubstrateSource) SubmitExtrinsic(ctx context.Context, signer substrate.Signer, call substrate.Call) (<-chan substrate.TxEvent, error) {
	params, err := s.extrinsicParams(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	ext, err := substrate.SignExtrinsic(ctx, signer, call, params)
	if err != nil {
		return nil, err
	}
	misc.Infof(s.log, "submitting %s from %s, nonce:%d", call, signer.Address(), params.Nonce)
	return s.client.SubmitAndWatch(ctx, ext)
}

// EstimateFee queries the fee of call sent by account. The runtime does not verify the signature
// when computing fees so a zero signature is used.
func (s *SubstrateSource) EstimateFee(ctx context.Context, account string, call substrate.Call) (decimal.Decimal, error) {
	pub, err := s.publicKey(account)
	if err != nil {
		return decimal.Zero, err
	}
	params, err := s.extrinsicParams(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	ext, err := substrate.EncodeSignedExtrinsic(call, pub, make([]byte, 64), params)
	if err != nil {
		return decimal.Zero, err
	}
	fee, err := s.client.QueryFee(ctx, ext)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee estimate failed: %w", err)
	}
	return substrate.ToDecimal(fee), nil
}

func (s *SubstrateSource) RegisteredDAOs(ctx context.Context) ([]DAO, error) {
	keys, err := s.client.AllKeys(ctx, substrate.NewStorageKey(PalletOcifStaking, ItemRegisteredCore))
	if err != nil {
		return nil, fmt.Errorf("failed to list registered daos: %w", err)
	}
	var (
		fanOut = syncutil.NewFanOut(10)
		mu     sync.Mutex
		daos   []DAO
	)
	for _, key := range keys {
		fanOut.Run(func(val any) error {
			key := val.(substrate.StorageKey)
			id, err := coreIDFromKey(key)
			if err != nil {
				return err
			}
			data, err := s.client.GetStorage(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to fetch dao %d: %w", id, err)
			}
			if data == nil {
				return nil
			}
			dao, err := decodeCoreInfo(id, data, s.network.SS58Prefix)
			if err != nil {
				return err
			}
			mu.Lock()
			daos = append(daos, dao)
			mu.Unlock()
			return nil
		}, key)
	}
	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}
	slices.SortFunc(daos, func(a, b DAO) int { return cmp.Compare(a.ID, b.ID) })
	return daos, nil
}

func (s *SubstrateSource) DAOEraStake(ctx context.Context, daoID uint32, era Era) (DAOEraStake, error) {
	key := substrate.NewStorageKey(PalletOcifStaking, ItemCoreEraStake,
		substrate.U32Key(substrate.Blake2_128Concat, daoID),
		substrate.U32Key(substrate.Twox64Concat, uint32(era)))
	data, err := s.client.GetStorage(ctx, key)
	if err != nil {
		return DAOEraStake{}, fmt.Errorf("failed to fetch era stake of dao %d: %w", daoID, err)
	}
	return decodeCoreEraStake(daoID, data)
}

func (s *SubstrateSource) EraInfo(ctx context.Context, era Era) (EraInfo, error) {
	key := substrate.NewStorageKey(PalletOcifStaking, ItemGeneralEraInfo, substrate.U32Key(substrate.Twox64Concat, uint32(era)))
	data, err := s.client.GetStorage(ctx, key)
	if err != nil {
		return EraInfo{}, fmt.Errorf("failed to fetch era %d info: %w", era, err)
	}
	return decodeEraInfo(data)
}

func (s *SubstrateSource) AccountBalance(ctx context.Context, account string) (AccountBalance, error) {
	pub, err := s.publicKey(account)
	if err != nil {
		return AccountBalance{}, err
	}
	data, err := s.client.GetStorage(ctx, substrate.NewStorageKey("System", "Account", substrate.AccountKey(substrate.Blake2_128Concat, pub)))
	if err != nil {
		return AccountBalance{}, fmt.Errorf("failed to fetch balance of %s: %w", account, err)
	}
	return decodeAccountInfo(data)
}

func (s *SubstrateSource) VestingSchedules(ctx context.Context, account string) ([]vesting.Schedule, decimal.Decimal, error) {
	pub, err := s.publicKey(account)
	if err != nil {
		return nil, decimal.Zero, err
	}
	data, err := s.client.GetStorage(ctx, vesting.SchedulesKey(pub))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to fetch vesting schedules: %w", err)
	}
	schedules, err := vesting.DecodeSchedules(data)
	if err != nil {
		return nil, decimal.Zero, err
	}
	locks, err := s.client.GetStorage(ctx, vesting.LocksKey(pub))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to fetch balance locks: %w", err)
	}
	lock, err := vesting.DecodeVestingLock(locks)
	return schedules, lock, err
}

// VestingClock returns the relay chain block number vesting schedules are measured against,
// falling back to the local block number on chains without a relay.
func (s *SubstrateSource) VestingClock(ctx context.Context) (vesting.Clock, error) {
	data, err := s.client.GetStorage(ctx, substrate.NewStorageKey("ParachainSystem", "LastRelayChainBlockNumber"))
	if err != nil {
		return vesting.Clock{}, err
	}
	if len(data) >= 4 {
		relayBlock, err := substrate.NewDecoder(data).U32()
		if err != nil {
			return vesting.Clock{}, err
		}
		return vesting.Clock{CurrentBlock: uint64(relayBlock), Now: time.Now(), BlockTime: relayBlockTime}, nil
	}
	block, err := s.client.BlockNumber(ctx)
	if err != nil {
		return vesting.Clock{}, err
	}
	return vesting.Clock{CurrentBlock: block, Now: time.Now(), BlockTime: s.network.BlockTime}, nil
}

// LoadPositions fetches the positions of account in every DAO in parallel. DAOs without stake
// history are omitted.
func LoadPositions(ctx context.Context, source ChainDataSource, account string, daoIDs []uint32) ([]StakePosition, error) {
	var (
		fanOut    = syncutil.NewFanOut(10)
		mu        sync.Mutex
		positions []StakePosition
	)
	for _, id := range daoIDs {
		fanOut.Run(func(val any) error {
			id := val.(uint32)
			stakes, err := source.StakerInfo(ctx, id, account)
			if err != nil {
				return err
			}
			if pos, ok := PositionFromStakes(id, stakes); ok {
				mu.Lock()
				positions = append(positions, pos)
				mu.Unlock()
			}
			return nil
		}, id)
	}
	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}
	slices.SortFunc(positions, func(a, b StakePosition) int { return cmp.Compare(a.PositionID, b.PositionID) })
	return positions, nil
}
