package substrate

import (
	"encoding/json"
	"fmt"
)

// TxStatus is the lifecycle stage reported for a submitted extrinsic.
type TxStatus int

const (
	// TxPending covers future, ready, broadcast and retracted - none of them are actionable.
	TxPending TxStatus = iota
	TxInBlock
	TxFinalized
	TxInvalid
	TxDropped
	TxError
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxInBlock:
		return "inBlock"
	case TxFinalized:
		return "finalized"
	case TxInvalid:
		return "invalid"
	case TxDropped:
		return "dropped"
	case TxError:
		return "error"
	}
	return fmt.Sprintf("TxStatus(%d)", int(s))
}

// Terminal reports whether no further events follow s.
func (s TxStatus) Terminal() bool {
	return s == TxFinalized || s == TxInvalid || s == TxDropped || s == TxError
}

type TxEvent struct {
	Status    TxStatus
	BlockHash string
	// Detail is the raw status name from the node, or the error text for TxError.
	Detail string
}

// ParseTxStatus converts an author_extrinsicUpdate notification into a TxEvent.
// Statuses are either plain strings ("ready") or single key objects ({"inBlock":"0x.."}).
func ParseTxStatus(raw json.RawMessage) (TxEvent, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return txEventFor(name, ""), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return TxEvent{}, fmt.Errorf("unrecognized transaction status %s: %w", string(raw), err)
	}
	for key, val := range obj {
		var hash string
		_ = json.Unmarshal(val, &hash)
		return txEventFor(key, hash), nil
	}
	return TxEvent{}, fmt.Errorf("empty transaction status")
}

func txEventFor(name, hash string) TxEvent {
	event := TxEvent{Detail: name, BlockHash: hash}
	switch name {
	case "inBlock":
		event.Status = TxInBlock
	case "finalized":
		event.Status = TxFinalized
	case "invalid":
		event.Status = TxInvalid
	case "dropped", "usurped", "finalityTimeout":
		event.Status = TxDropped
	default:
		event.Status = TxPending
	}
	return event
}
