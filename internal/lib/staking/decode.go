package staking

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/substrate"
)

// decodeStakerInfo decodes StakerInfo{stakes: Vec<EraStake{staked: Compact<u128>, era: Compact<u32>}>}.
func decodeStakerInfo(data []byte) ([]EraStake, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := substrate.NewDecoder(data)
	count, err := dec.CompactLen()
	if err != nil {
		return nil, err
	}
	stakes := make([]EraStake, 0, count)
	for i := 0; i < count; i++ {
		staked, err := dec.Compact()
		if err != nil {
			return nil, fmt.Errorf("stake %d amount: %w", i, err)
		}
		era, err := dec.Compact()
		if err != nil {
			return nil, fmt.Errorf("stake %d era: %w", i, err)
		}
		stakes = append(stakes, EraStake{Era: Era(era.Int64()), Staked: substrate.ToDecimal(staked)})
	}
	return stakes, nil
}

func decodeEra(data []byte) (Era, error) {
	if len(data) == 0 {
		return 0, nil
	}
	era, err := substrate.NewDecoder(data).U32()
	return Era(era), err
}

// decodeCoreInfo decodes CoreInfo{account: AccountId, metadata: {name, description, image: Vec<u8>}}.
// Missing or undecodable metadata resolves to MetadataAbsent.
func decodeCoreInfo(id uint32, data []byte, prefix uint16) (DAO, error) {
	dec := substrate.NewDecoder(data)
	account, err := dec.Read(32)
	if err != nil {
		return DAO{}, fmt.Errorf("core %d account: %w", id, err)
	}
	var pub substrate.PublicKey
	copy(pub[:], account)
	dao := DAO{ID: id, Account: substrate.EncodeAddress(pub, prefix)}

	var fields [3]string
	for i := range fields {
		value, err := dec.ByteVec()
		if err != nil {
			return dao, nil
		}
		fields[i] = string(value)
	}
	dao.Metadata = NewMetadata(fields[0], fields[1], fields[2])
	return dao, nil
}

// decodeCoreEraStake decodes CoreStakeInfo{total: u128, number_of_stakers: u32, reward_claimed: bool, active: bool}.
func decodeCoreEraStake(id uint32, data []byte) (DAOEraStake, error) {
	info := DAOEraStake{DAOID: id, TotalStaked: decimal.Zero}
	if len(data) == 0 {
		return info, nil
	}
	dec := substrate.NewDecoder(data)
	total, err := dec.U128()
	if err != nil {
		return info, err
	}
	if info.NumberOfStakers, err = dec.U32(); err != nil {
		return info, err
	}
	claimed, err := dec.Byte()
	if err != nil {
		return info, err
	}
	active, err := dec.Byte()
	if err != nil {
		return info, err
	}
	info.TotalStaked = substrate.ToDecimal(total)
	info.RewardClaimed = claimed == 1
	info.Active = active == 1
	return info, nil
}

// decodeEraInfo decodes EraInfo{rewards: {stakers, core}, staked, active_stake, locked}, all u128.
func decodeEraInfo(data []byte) (EraInfo, error) {
	var info EraInfo
	if len(data) == 0 {
		return info, ErrDataUnavailable
	}
	dec := substrate.NewDecoder(data)
	for _, field := range []*decimal.Decimal{&info.StakerRewards, &info.CoreRewards, &info.Staked, &info.ActiveStake, &info.Locked} {
		v, err := dec.U128()
		if err != nil {
			return info, err
		}
		*field = substrate.ToDecimal(v)
	}
	return info, nil
}

// decodeAccountInfo decodes System.Account: nonce, consumers, providers, sufficients (u32) then
// free, reserved, frozen (u128).
func decodeAccountInfo(data []byte) (AccountBalance, error) {
	balance := AccountBalance{Free: decimal.Zero, Reserved: decimal.Zero, Frozen: decimal.Zero}
	if len(data) == 0 {
		return balance, nil
	}
	dec := substrate.NewDecoder(data)
	if _, err := dec.Read(16); err != nil {
		return balance, err
	}
	for _, field := range []*decimal.Decimal{&balance.Free, &balance.Reserved, &balance.Frozen} {
		v, err := dec.U128()
		if err != nil {
			return balance, err
		}
		*field = substrate.ToDecimal(v)
	}
	return balance, nil
}

// coreIDFromKey extracts the u32 core id from a blake2_128concat keyed map entry.
func coreIDFromKey(key substrate.StorageKey) (uint32, error) {
	if len(key) < 4 {
		return 0, fmt.Errorf("storage key too short:%s", key.Hex())
	}
	return binary.LittleEndian.Uint32(key[len(key)-4:]), nil
}
