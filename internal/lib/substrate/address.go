package substrate

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrChecksum        = errors.New("ss58 checksum mismatch")
	ErrPrefixMismatch  = errors.New("ss58 prefix does not match network")
	ss58ChecksumPrefix = []byte("SS58PRE")
)

type PublicKey [32]byte

func (p PublicKey) Hex() string {
	return EncodeHex(p[:])
}

// EncodeAddress returns the SS58 encoding of the public key for the given network prefix.
func EncodeAddress(pub PublicKey, prefix uint16) string {
	payload := ss58PrefixBytes(prefix)
	payload = append(payload, pub[:]...)
	checksum := ss58Checksum(payload)
	return base58.Encode(append(payload, checksum[0:2]...))
}

// DecodeAddress parses an SS58 address returning the public key and the network prefix it was
// encoded with.
func DecodeAddress(address string) (PublicKey, uint16, error) {
	var pub PublicKey
	raw, err := base58.Decode(address)
	if err != nil {
		return pub, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 1 {
		return pub, 0, ErrInvalidAddress
	}
	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return pub, 0, ErrInvalidAddress
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return pub, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, raw[0])
	}
	if len(raw) != prefixLen+32+2 {
		return pub, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	payload := raw[:prefixLen+32]
	checksum := ss58Checksum(payload)
	if !bytes.Equal(checksum[0:2], raw[prefixLen+32:]) {
		return pub, 0, ErrChecksum
	}
	copy(pub[:], raw[prefixLen:prefixLen+32])
	return pub, prefix, nil
}

// DecodeAddressForNetwork decodes the address and verifies it was encoded for the given prefix.
func DecodeAddressForNetwork(address string, prefix uint16) (PublicKey, error) {
	pub, got, err := DecodeAddress(address)
	if err != nil {
		return pub, err
	}
	if got != prefix {
		return pub, fmt.Errorf("%w: address prefix %d, network prefix %d", ErrPrefixMismatch, got, prefix)
	}
	return pub, nil
}

func ss58PrefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
	second := byte(prefix>>8) | byte(prefix&0b0000_0000_0000_0011)<<6
	return []byte{first, second}
}

func ss58Checksum(payload []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, ss58ChecksumPrefix...), payload...))
}
