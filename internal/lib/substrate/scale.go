package substrate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Minimal SCALE codec - only the primitives needed for the staking calls and the storage
// items we decode.

var (
	ErrShortData      = errors.New("scale: not enough data")
	ErrValueTooLarge  = errors.New("scale: value too large")
	ErrNegativeAmount = errors.New("scale: negative value")
)

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

type Encoder struct {
	buf bytes.Buffer
}

func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) PushByte(b byte) {
	e.buf.WriteByte(b)
}

func (e *Encoder) PushBytes(b []byte) {
	e.buf.Write(b)
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U128(v *big.Int) error {
	if v.Sign() < 0 {
		return ErrNegativeAmount
	}
	if v.Cmp(maxU128) > 0 {
		return ErrValueTooLarge
	}
	var b [16]byte
	v.FillBytes(b[:])
	reverse(b[:])
	e.buf.Write(b[:])
	return nil
}

func (e *Encoder) CompactUint(v uint64) {
	_ = e.Compact(new(big.Int).SetUint64(v))
}

func (e *Encoder) Compact(v *big.Int) error {
	if v.Sign() < 0 {
		return ErrNegativeAmount
	}
	if v.BitLen() > 536 {
		return ErrValueTooLarge
	}
	if v.IsUint64() {
		u := v.Uint64()
		switch {
		case u < 1<<6:
			e.buf.WriteByte(byte(u << 2))
			return nil
		case u < 1<<14:
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(u<<2|0b01))
			e.buf.Write(b[:])
			return nil
		case u < 1<<30:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(u<<2|0b10))
			e.buf.Write(b[:])
			return nil
		}
	}
	raw := v.Bytes()
	reverse(raw)
	for len(raw) < 4 {
		raw = append(raw, 0)
	}
	e.buf.WriteByte(byte(len(raw)-4)<<2 | 0b11)
	e.buf.Write(raw)
	return nil
}

// ByteVec writes a length prefixed byte vector.
func (e *Encoder) ByteVec(b []byte) {
	e.CompactUint(uint64(len(b)))
	e.buf.Write(b)
}

type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) Read(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: wanted %d bytes, have %d", ErrShortData, n, d.Remaining())
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) Byte() (byte, error) {
	b, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) U128() (*big.Int, error) {
	b, err := d.Read(16)
	if err != nil {
		return nil, err
	}
	be := make([]byte, 16)
	copy(be, b)
	reverse(be)
	return new(big.Int).SetBytes(be), nil
}

func (d *Decoder) Compact() (*big.Int, error) {
	first, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch first & 0b11 {
	case 0b00:
		return big.NewInt(int64(first >> 2)), nil
	case 0b01:
		next, err := d.Byte()
		if err != nil {
			return nil, err
		}
		return big.NewInt(int64(uint16(first)|uint16(next)<<8) >> 2), nil
	case 0b10:
		rest, err := d.Read(3)
		if err != nil {
			return nil, err
		}
		u := uint32(first) | uint32(rest[0])<<8 | uint32(rest[1])<<16 | uint32(rest[2])<<24
		return big.NewInt(int64(u >> 2)), nil
	default:
		n := int(first>>2) + 4
		raw, err := d.Read(n)
		if err != nil {
			return nil, err
		}
		be := make([]byte, n)
		copy(be, raw)
		reverse(be)
		return new(big.Int).SetBytes(be), nil
	}
}

// CompactLen decodes a compact encoded collection length.
func (d *Decoder) CompactLen() (int, error) {
	v, err := d.Compact()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() || v.Int64() > int64(d.Remaining()) {
		return 0, fmt.Errorf("%w: length %s exceeds remaining %d bytes", ErrShortData, v, d.Remaining())
	}
	return int(v.Int64()), nil
}

func (d *Decoder) ByteVec() ([]byte, error) {
	n, err := d.CompactLen()
	if err != nil {
		return nil, err
	}
	return d.Read(n)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
