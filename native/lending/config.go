package lending

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultInitialExchangeRate is the cToken exchange rate before the first
// mint, 0.02 underlying per share scaled by 1e18.
var DefaultInitialExchangeRate = mustBigInt("20000000000000000")

// MarketConfig captures the static configuration of a money market.
type MarketConfig struct {
	Symbol string
	// Underlying is the ERC20 asset; the zero address selects the native
	// currency.
	Underlying          common.Address
	Comptroller         common.Address
	InitialExchangeRate *big.Int
	ReserveFactorBps    uint64
	Model               *InterestModel
	Pauses              ActionPauses
}

// EnsureDefaults populates unset fields.
func (c *MarketConfig) EnsureDefaults() {
	if c.InitialExchangeRate == nil || c.InitialExchangeRate.Sign() == 0 {
		c.InitialExchangeRate = new(big.Int).Set(DefaultInitialExchangeRate)
	}
	if c.Model == nil {
		c.Model = DefaultInterestModel.Clone()
	}
	c.Symbol = strings.TrimSpace(c.Symbol)
}

// Validate checks that the configuration can back a market.
func (c MarketConfig) Validate() error {
	if c.Comptroller == (common.Address{}) {
		return fmt.Errorf("lending: market %q requires a comptroller", c.Symbol)
	}
	if c.ReserveFactorBps > 10_000 {
		return fmt.Errorf("lending: reserve factor %d exceeds 100%%", c.ReserveFactorBps)
	}
	if c.InitialExchangeRate != nil && c.InitialExchangeRate.Sign() < 0 {
		return fmt.Errorf("lending: negative initial exchange rate")
	}
	return nil
}

// MarketListing configures a market inside the comptroller.
type MarketListing struct {
	Market              common.Address
	CollateralFactorBps uint64
	// RewardSpeed is the reward token amount distributed to suppliers per block.
	RewardSpeed *big.Int
}
