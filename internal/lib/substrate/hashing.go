package substrate

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Hasher is a storage map key hasher as declared in the runtime metadata.
type Hasher int

const (
	Blake2_128Concat Hasher = iota
	Twox64Concat
	Identity
)

// Twox128 is the xxhash64 of data with seed 0 followed by seed 1, both little endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:8], twox64(data, 0))
	binary.LittleEndian.PutUint64(out[8:16], twox64(data, 1))
	return out
}

func twox64(data []byte, seed uint64) uint64 {
	h := xxhash.NewWithSeed(seed)
	_, _ = h.Write(data)
	return h.Sum64()
}

func Blake2_128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

func Blake2_256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func (h Hasher) Hash(key []byte) []byte {
	switch h {
	case Blake2_128Concat:
		return append(Blake2_128(key), key...)
	case Twox64Concat:
		var out [8]byte
		binary.LittleEndian.PutUint64(out[:], twox64(key, 0))
		return append(out[:], key...)
	default:
		return append([]byte{}, key...)
	}
}

// HashLen is the number of bytes the hasher puts in front of the raw key.
func (h Hasher) HashLen() int {
	switch h {
	case Blake2_128Concat:
		return 16
	case Twox64Concat:
		return 8
	default:
		return 0
	}
}

// StorageKey is twox128(pallet) ++ twox128(item) ++ hasher(key) for each map key.
type StorageKey []byte

func (k StorageKey) Hex() string {
	return "0x" + hex.EncodeToString(k)
}

type MapKey struct {
	Hasher Hasher
	Key    []byte
}

func NewStorageKey(pallet, item string, keys ...MapKey) StorageKey {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	for _, k := range keys {
		key = append(key, k.Hasher.Hash(k.Key)...)
	}
	return key
}

func U32Key(hasher Hasher, v uint32) MapKey {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return MapKey{Hasher: hasher, Key: b[:]}
}

func AccountKey(hasher Hasher, pub PublicKey) MapKey {
	return MapKey{Hasher: hasher, Key: pub[:]}
}

// DecodeHex accepts hex with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
