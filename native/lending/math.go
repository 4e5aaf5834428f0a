package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	wad         = mustBigInt("1000000000000000000")                   // 1e18 mantissa
	doubleScale = mustBigInt("1000000000000000000000000000000000000") // 1e36 reward index precision
)

// blocksPerYear assumes 3-second blocks.
const blocksPerYear = 10_512_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func mulWad(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, wad)
}

func divWad(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, wad)
	return numerator.Quo(numerator, b)
}

func bpsToWad(bps uint64) *big.Int {
	scaled := new(big.Int).Mul(new(big.Int).SetUint64(bps), wad)
	return scaled.Quo(scaled, basisPoints)
}

// ratToWad truncates r to an 18-decimal mantissa.
func ratToWad(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(wad))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

// computeInterest returns the simple interest owed on borrows over delta
// blocks at ratePerBlock (wad).
func computeInterest(borrows, ratePerBlock *big.Int, delta uint64) *big.Int {
	if borrows == nil || borrows.Sign() == 0 || ratePerBlock == nil || ratePerBlock.Sign() == 0 || delta == 0 {
		return big.NewInt(0)
	}
	factor := new(big.Int).Mul(ratePerBlock, new(big.Int).SetUint64(delta))
	return mulWad(factor, borrows)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
