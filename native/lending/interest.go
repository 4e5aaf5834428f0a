package lending

import "math/big"

// InterestModel encapsulates the parameters that shape how interest rates react
// to market utilisation.
type InterestModel struct {
	// BaseRate is the minimum borrow APR applied when utilisation is zero.
	BaseRate *big.Rat
	// Slope1 is the borrow APR increase per unit of utilisation up to the
	// kink point.
	Slope1 *big.Rat
	// Slope2 governs the additional APR increase applied when utilisation
	// exceeds the kink point.
	Slope2 *big.Rat
	// Kink represents the utilisation ratio where the borrow rate slope
	// changes to encourage liquidity.
	Kink *big.Rat
}

// Clone returns a deep copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	return &InterestModel{
		BaseRate: cloneRat(m.BaseRate),
		Slope1:   cloneRat(m.Slope1),
		Slope2:   cloneRat(m.Slope2),
		Kink:     cloneRat(m.Kink),
	}
}

// NewInterestModel constructs an interest model from floating point inputs.
//
// The parameters should be provided as decimals, e.g. a 2% base rate is
// expressed as 0.02 and an 80% kink utilisation is 0.8.
func NewInterestModel(baseRate, slope1, slope2, kink float64) *InterestModel {
	model := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// Utilisation computes U = borrows / (cash + borrows - reserves). When the
// market holds no liquidity the utilisation is defined as zero.
func (m *InterestModel) Utilisation(cash, borrows, reserves *big.Int) *big.Rat {
	if borrows == nil || borrows.Sign() == 0 {
		return new(big.Rat)
	}
	supplied := new(big.Int).Add(cloneBig(cash), borrows)
	supplied.Sub(supplied, cloneBig(reserves))
	if supplied.Sign() <= 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(borrows, supplied)
}

// BorrowAPR derives the dynamic borrow APR based on the current utilisation.
func (m *InterestModel) BorrowAPR(cash, borrows, reserves *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	utilisation := m.Utilisation(cash, borrows, reserves)
	if utilisation.Sign() == 0 {
		return rate
	}
	kink := cloneRat(m.Kink)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope1), utilisation))
	}
	rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope1), kink))
	excess := new(big.Rat).Sub(utilisation, kink)
	return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope2), excess))
}

// BorrowRatePerBlock returns the borrow rate per block as a wad mantissa.
func (m *InterestModel) BorrowRatePerBlock(cash, borrows, reserves *big.Int) *big.Int {
	apr := m.BorrowAPR(cash, borrows, reserves)
	return ratToWad(apr.Quo(apr, new(big.Rat).SetUint64(blocksPerYear)))
}

// SupplyRatePerBlock returns the rate earned by suppliers per block after the
// reserve cut, as a wad mantissa.
func (m *InterestModel) SupplyRatePerBlock(cash, borrows, reserves *big.Int, reserveFactorBps uint64) *big.Int {
	if m == nil || reserveFactorBps >= 10_000 {
		return big.NewInt(0)
	}
	utilisation := m.Utilisation(cash, borrows, reserves)
	if utilisation.Sign() == 0 {
		return big.NewInt(0)
	}
	rate := m.BorrowAPR(cash, borrows, reserves)
	rate.Mul(rate, utilisation)
	rate.Mul(rate, big.NewRat(int64(10_000-reserveFactorBps), 10_000))
	return ratToWad(rate.Quo(rate, new(big.Rat).SetUint64(blocksPerYear)))
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultInterestModel provides a reasonable starting configuration featuring a
// kinked interest rate curve with a modest base rate.
var DefaultInterestModel = NewInterestModel(0.02, 0.15, 0.6, 0.8)
