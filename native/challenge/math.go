package challenge

import "github.com/holiman/uint256"

const bpsDenominator = 10_000

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// addAmount adds two amounts, failing when the result does not fit in 128
// bits.
func addAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(cloneAmount(a), cloneAmount(b))
	if overflow || sum.BitLen() > 128 {
		return nil, ErrOverflow
	}
	return sum, nil
}

func subAmount(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(cloneAmount(a), cloneAmount(b))
	if underflow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// bpsOf returns floor(amount * bps / 10000). amount is at most 128 bits and
// bps at most 10000 so the product cannot overflow 256 bits.
func bpsOf(amount *uint256.Int, bps uint32) *uint256.Int {
	out := new(uint256.Int).Mul(cloneAmount(amount), uint256.NewInt(uint64(bps)))
	return out.Div(out, uint256.NewInt(bpsDenominator))
}
