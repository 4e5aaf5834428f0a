package lending

import "math/big"

// marketState is the persisted accounting of a money market.
type marketState struct {
	TotalSupply   *big.Int
	TotalBorrows  *big.Int
	TotalReserves *big.Int
	BorrowIndex   *big.Int
	AccrualBlock  uint64
}

func (s *marketState) ensure() {
	if s.TotalSupply == nil {
		s.TotalSupply = big.NewInt(0)
	}
	if s.TotalBorrows == nil {
		s.TotalBorrows = big.NewInt(0)
	}
	if s.TotalReserves == nil {
		s.TotalReserves = big.NewInt(0)
	}
	if s.BorrowIndex == nil || s.BorrowIndex.Sign() == 0 {
		s.BorrowIndex = new(big.Int).Set(wad)
	}
}

// borrowSnapshot is the debt of one account as of InterestIndex.
type borrowSnapshot struct {
	Principal     *big.Int
	InterestIndex *big.Int
}

// balance projects the snapshot onto the current market borrow index.
func (b borrowSnapshot) balance(borrowIndex *big.Int) *big.Int {
	if b.Principal == nil || b.Principal.Sign() == 0 || b.InterestIndex == nil || b.InterestIndex.Sign() == 0 {
		return big.NewInt(0)
	}
	owed := new(big.Int).Mul(b.Principal, borrowIndex)
	return owed.Quo(owed, b.InterestIndex)
}

// marketRecord is the comptroller's view of a listed market.
type marketRecord struct {
	Listed           bool
	CollateralFactor *big.Int
	SupplyIndex      *big.Int
	SupplyBlock      uint64
	Speed            *big.Int
}

func (r *marketRecord) ensure() {
	if r.CollateralFactor == nil {
		r.CollateralFactor = big.NewInt(0)
	}
	if r.SupplyIndex == nil || r.SupplyIndex.Sign() == 0 {
		r.SupplyIndex = new(big.Int).Set(doubleScale)
	}
	if r.Speed == nil {
		r.Speed = big.NewInt(0)
	}
}
