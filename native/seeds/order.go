package seeds

import (
	"bytes"
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// maxOrderWidth is the widest order that still packs into a uint64.
const maxOrderWidth = 8

// PackedOrder is the concatenation of the bucket selectors chosen at each
// depth of the commitment tree. A path belongs to the bucket when its endpoint
// hash starts with the order.
type PackedOrder []byte

// OrderError reports an order that does not fit the requested width.
type OrderError struct {
	Width int
	Limit int
	Value uint64
}

func (e *OrderError) Error() string {
	if e.Value != 0 {
		return fmt.Sprintf("seeds: order value %#x does not fit %d bytes", e.Value, e.Limit)
	}
	return fmt.Sprintf("seeds: order width %d exceeds %d bytes", e.Width, e.Limit)
}

// ToUint64 packs the order big-endian, right aligned, so a shorter order
// becomes a smaller integer. Orders longer than eight bytes fail.
func (o PackedOrder) ToUint64() (uint64, error) {
	if len(o) > maxOrderWidth {
		return 0, &OrderError{Width: len(o), Limit: maxOrderWidth}
	}
	var buf [maxOrderWidth]byte
	copy(buf[maxOrderWidth-len(o):], o)
	return binary.BigEndian.Uint64(buf[:]), nil
}

// OrderFromUint64 unpacks v into an order of exactly width bytes. It fails
// when v carries bits above the width.
func OrderFromUint64(v uint64, width int) (PackedOrder, error) {
	if width < 0 || width > maxOrderWidth {
		return nil, &OrderError{Width: width, Limit: maxOrderWidth}
	}
	if width < maxOrderWidth && v>>(8*uint(width)) != 0 {
		return nil, &OrderError{Width: width, Limit: width, Value: v}
	}
	var buf [maxOrderWidth]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return PackedOrder(append([]byte(nil), buf[maxOrderWidth-width:]...)), nil
}

// Append returns a new order extended by selector.
func (o PackedOrder) Append(selector []byte) PackedOrder {
	out := make(PackedOrder, 0, len(o)+len(selector))
	out = append(out, o...)
	return append(out, selector...)
}

// HasPrefixOf reports whether hash starts with the order.
func (o PackedOrder) HasPrefixOf(hash []byte) bool {
	return len(hash) >= len(o) && bytes.Equal(hash[:len(o)], o)
}

// EndpointHash identifies the bucket of every path between start and stop.
func EndpointHash(start, stop [20]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(start[:], stop[:]))
	return out
}
