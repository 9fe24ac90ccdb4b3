/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/misc"
)

type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

func (c *Client) RuntimeVersion(ctx context.Context) (RuntimeVersion, error) {
	var version RuntimeVersion
	err := c.Call(ctx, "state_getRuntimeVersion", &version)
	return version, err
}

func (c *Client) BlockHash(ctx context.Context, number uint64) ([]byte, error) {
	var hash string
	if err := c.Call(ctx, "chain_getBlockHash", &hash, number); err != nil {
		return nil, err
	}
	return DecodeHex(hash)
}

func (c *Client) GenesisHash(ctx context.Context) ([]byte, error) {
	return c.BlockHash(ctx, 0)
}

// BlockNumber returns the number of the current best block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var header struct {
		Number string `json:"number"`
	}
	if err := c.Call(ctx, "chain_getHeader", &header); err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64)
}

// AccountNextIndex returns the next nonce for address, including transactions in the pool.
func (c *Client) AccountNextIndex(ctx context.Context, address string) (uint64, error) {
	var nonce uint64
	err := c.Call(ctx, "system_accountNextIndex", &nonce, address)
	return nonce, err
}

// GetStorage returns the raw value at key, or nil when no value is stored.
func (c *Client) GetStorage(ctx context.Context, key StorageKey) ([]byte, error) {
	var value *string
	if err := c.Call(ctx, "state_getStorage", &value, key.Hex()); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return DecodeHex(*value)
}

// GetKeysPaged returns up to count keys starting with prefix, after startKey (when set).
func (c *Client) GetKeysPaged(ctx context.Context, prefix StorageKey, count int, startKey StorageKey) ([]StorageKey, error) {
	params := []any{prefix.Hex(), count}
	if len(startKey) > 0 {
		params = append(params, startKey.Hex())
	}
	var hexKeys []string
	if err := c.Call(ctx, "state_getKeysPaged", &hexKeys, params...); err != nil {
		return nil, err
	}
	keys := make([]StorageKey, 0, len(hexKeys))
	for _, hk := range hexKeys {
		key, err := DecodeHex(hk)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// AllKeys pages through every key under prefix.
func (c *Client) AllKeys(ctx context.Context, prefix StorageKey) ([]StorageKey, error) {
	const pageSize = 500
	var (
		all   []StorageKey
		start StorageKey
	)
	for {
		keys, err := c.GetKeysPaged(ctx, prefix, pageSize, start)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
		if len(keys) < pageSize {
			return all, nil
		}
		start = keys[len(keys)-1]
	}
}

// StorageChange is one changed key from a storage subscription. Value is nil when the key was removed.
type StorageChange struct {
	Block string
	Key   StorageKey
	Value []byte
}

// SubscribeStorage watches keys; the current values are delivered first.
func (c *Client) SubscribeStorage(ctx context.Context, keys []StorageKey) (*Subscription, error) {
	hexKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		hexKeys = append(hexKeys, key.Hex())
	}
	return c.Subscribe(ctx, "state_subscribeStorage", "state_unsubscribeStorage", hexKeys)
}

// ParseStorageChangeSet decodes a state_storage notification.
func ParseStorageChangeSet(raw json.RawMessage) ([]StorageChange, error) {
	var set struct {
		Block   string       `json:"block"`
		Changes [][2]*string `json:"changes"`
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("invalid storage change set: %w", err)
	}
	changes := make([]StorageChange, 0, len(set.Changes))
	for _, change := range set.Changes {
		if change[0] == nil {
			continue
		}
		key, err := DecodeHex(*change[0])
		if err != nil {
			return nil, err
		}
		sc := StorageChange{Block: set.Block, Key: key}
		if change[1] != nil {
			if sc.Value, err = DecodeHex(*change[1]); err != nil {
				return nil, err
			}
		}
		changes = append(changes, sc)
	}
	return changes, nil
}

// QueryFee returns the partial fee the runtime would charge for the encoded extrinsic.
func (c *Client) QueryFee(ctx context.Context, extrinsic []byte) (*big.Int, error) {
	var info struct {
		PartialFee json.RawMessage `json:"partialFee"`
	}
	if err := c.Call(ctx, "payment_queryInfo", &info, EncodeHex(extrinsic)); err != nil {
		return nil, err
	}
	// older nodes return a number, newer ones a decimal string
	feeStr := strings.Trim(string(info.PartialFee), `"`)
	fee, ok := new(big.Int).SetString(feeStr, 0)
	if !ok {
		return nil, fmt.Errorf("invalid partialFee:%s", string(info.PartialFee))
	}
	return fee, nil
}

// SubmitAndWatch submits a signed extrinsic and streams its lifecycle. The channel closes after a
// terminal event. A transport failure is reported as a TxError event.
func (c *Client) SubmitAndWatch(ctx context.Context, extrinsic []byte) (<-chan TxEvent, error) {
	sub, err := c.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", EncodeHex(extrinsic))
	if err != nil {
		return nil, err
	}
	events := make(chan TxEvent, 8)
	// send gives up once ctx is done, the reader may be gone by then
	send := func(event TxEvent) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(events)
		defer sub.Unsubscribe(context.WithoutCancel(ctx))
		for {
			select {
			case <-ctx.Done():
				select {
				case events <- TxEvent{Status: TxError, Detail: ctx.Err().Error()}:
				default:
				}
				return
			case raw, ok := <-sub.Notifications():
				if !ok {
					detail := "subscription closed"
					if err := c.err(); err != nil {
						detail = err.Error()
					}
					send(TxEvent{Status: TxError, Detail: detail})
					return
				}
				event, err := ParseTxStatus(raw)
				if err != nil {
					misc.Warnf(c.log, "ignoring transaction status: %v", err)
					continue
				}
				if !send(event) || event.Status.Terminal() {
					return
				}
			}
		}
	}()
	return events, nil
}

// ToDecimal converts a base unit integer into a decimal.
func ToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

// ToBigInt converts a base unit decimal amount (truncating any fraction) into an integer.
func ToBigInt(d decimal.Decimal) *big.Int {
	return d.Truncate(0).BigInt()
}

// FormattedAmount renders a base unit amount in whole tokens, trimming trailing zeros.
func FormattedAmount(amount decimal.Decimal, decimals int32) string {
	formattedAmount := amount.Shift(-decimals).StringFixed(decimals)
	// chop trailing 0's and decimal (if nothing else)
	if strings.Contains(formattedAmount, ".") {
		formattedAmount = strings.TrimRight(formattedAmount, "0")
		formattedAmount = strings.TrimRight(formattedAmount, ".")
	}
	return formattedAmount
}

// ParseAmount converts a whole token amount entered by a user ("1.5") into base units.
func ParseAmount(amount string, decimals int32) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, err
	}
	return value.Shift(decimals), nil
}
