package lending

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
	"fildawallet/native/protocol"
)

var (
	// ErrMarketNotListed is returned for markets unknown to the comptroller.
	ErrMarketNotListed = errors.New("lending: market not listed")
	// ErrInsufficientLiquidity is returned when an action would leave the
	// account with a shortfall.
	ErrInsufficientLiquidity = errors.New("lending: insufficient liquidity")
	// ErrNotAdmin is returned when a configuration call is not made by the admin.
	ErrNotAdmin = fmt.Errorf("lending: caller is not the comptroller admin: %w", protocol.ErrUnauthorized)
)

const (
	EventMarketListed   = "comptroller.marketListed"
	EventMarketEntered  = "comptroller.marketEntered"
	EventRewardSpeed    = "comptroller.rewardSpeed"
	EventRewardAccrued  = "comptroller.rewardDistributed"
	EventRewardClaimed  = "comptroller.rewardClaimed"
	allMarketsKey       = "markets"
	marketPrefix        = "market/"
	memberPrefix        = "member/"
	assetsPrefix        = "assets/"
	accruedPrefix       = "accrued/"
	supplierIndexPrefix = "supplierIndex/"
)

// rewardMarket is the view of a market the comptroller needs for reward and
// liquidity accounting.
type rewardMarket interface {
	protocol.Market
	TotalSupply() *big.Int
}

// Comptroller is the risk and reward module shared by all markets. Every
// underlying asset is priced one to one with the native currency.
type Comptroller struct {
	backend     protocol.Backend
	addr        common.Address
	admin       common.Address
	rewardToken common.Address
}

// NewComptroller binds a comptroller stored under addr.
func NewComptroller(backend protocol.Backend, addr, admin, rewardToken common.Address) *Comptroller {
	return &Comptroller{backend: backend, addr: addr, admin: admin, rewardToken: rewardToken}
}

func (c *Comptroller) Address() common.Address     { return c.addr }
func (c *Comptroller) RewardToken() common.Address { return c.rewardToken }
func (c *Comptroller) Admin() common.Address       { return c.admin }

func marketKey(market common.Address) []byte {
	return append([]byte(marketPrefix), market.Bytes()...)
}

func memberKey(account, market common.Address) []byte {
	key := append([]byte(memberPrefix), account.Bytes()...)
	return append(key, market.Bytes()...)
}

func assetsKey(account common.Address) []byte {
	return append([]byte(assetsPrefix), account.Bytes()...)
}

func accruedKey(account common.Address) []byte {
	return append([]byte(accruedPrefix), account.Bytes()...)
}

func supplierIndexKey(market, account common.Address) []byte {
	key := append([]byte(supplierIndexPrefix), market.Bytes()...)
	return append(key, account.Bytes()...)
}

func (c *Comptroller) record(market common.Address) (*marketRecord, error) {
	rec := new(marketRecord)
	if _, err := c.backend.KVGet(c.addr, marketKey(market), rec); err != nil {
		return nil, err
	}
	rec.ensure()
	return rec, nil
}

func (c *Comptroller) listed(market common.Address) (*marketRecord, error) {
	rec, err := c.record(market)
	if err != nil {
		return nil, err
	}
	if !rec.Listed {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotListed, market.Hex())
	}
	return rec, nil
}

func (c *Comptroller) allMarkets() ([]common.Address, error) {
	var markets []common.Address
	if _, err := c.backend.KVGet(c.addr, []byte(allMarketsKey), &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *Comptroller) market(addr common.Address) (rewardMarket, error) {
	market, err := c.backend.Market(addr)
	if err != nil {
		return nil, err
	}
	rm, ok := market.(rewardMarket)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrWrongContract, addr.Hex())
	}
	return rm, nil
}

func (c *Comptroller) requireAdmin(caller common.Address) error {
	if c == nil || c.backend == nil {
		return errNilBackend
	}
	if caller != c.admin {
		return ErrNotAdmin
	}
	return nil
}

// SupportMarket lists a market with its collateral factor and supply reward
// speed. Relisting updates the parameters.
func (c *Comptroller) SupportMarket(caller common.Address, listing MarketListing) error {
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if listing.CollateralFactorBps > 9_000 {
		return fmt.Errorf("lending: collateral factor %d bps exceeds 90%%", listing.CollateralFactorBps)
	}
	if _, err := c.market(listing.Market); err != nil {
		return err
	}
	rec, err := c.record(listing.Market)
	if err != nil {
		return err
	}
	if !rec.Listed {
		markets, err := c.allMarkets()
		if err != nil {
			return err
		}
		if err := c.backend.KVPut(c.addr, []byte(allMarketsKey), append(markets, listing.Market)); err != nil {
			return err
		}
		rec.Listed = true
		rec.SupplyBlock = c.backend.BlockNumber()
	} else if err := c.projectSupplyIndex(listing.Market, rec); err != nil {
		return err
	}
	rec.CollateralFactor = bpsToWad(listing.CollateralFactorBps)
	rec.Speed = cloneBig(listing.RewardSpeed)
	if err := c.backend.KVPut(c.addr, marketKey(listing.Market), rec); err != nil {
		return err
	}
	c.emit(EventMarketListed, map[string]string{
		"market":           listing.Market.Hex(),
		"collateralFactor": rec.CollateralFactor.String(),
		"speed":            rec.Speed.String(),
	})
	return nil
}

// SetRewardSpeed changes the per-block supply reward of a listed market.
func (c *Comptroller) SetRewardSpeed(caller, market common.Address, speed *big.Int) error {
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	rec, err := c.listed(market)
	if err != nil {
		return err
	}
	if speed != nil && speed.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := c.projectSupplyIndex(market, rec); err != nil {
		return err
	}
	rec.Speed = cloneBig(speed)
	if err := c.backend.KVPut(c.addr, marketKey(market), rec); err != nil {
		return err
	}
	c.emit(EventRewardSpeed, map[string]string{"market": market.Hex(), "speed": rec.Speed.String()})
	return nil
}

// EnterMarkets adds the markets to account's collateral set.
func (c *Comptroller) EnterMarkets(account common.Address, markets []common.Address) error {
	if c == nil || c.backend == nil {
		return errNilBackend
	}
	for _, market := range markets {
		if err := c.enter(account, market); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comptroller) enter(account, market common.Address) error {
	if _, err := c.listed(market); err != nil {
		return err
	}
	if c.CheckMembership(account, market) {
		return nil
	}
	if err := c.backend.KVPut(c.addr, memberKey(account, market), true); err != nil {
		return err
	}
	assets, err := c.assets(account)
	if err != nil {
		return err
	}
	if err := c.backend.KVPut(c.addr, assetsKey(account), append(assets, market)); err != nil {
		return err
	}
	c.emit(EventMarketEntered, map[string]string{"account": account.Hex(), "market": market.Hex()})
	return nil
}

// CheckMembership reports whether account entered market.
func (c *Comptroller) CheckMembership(account, market common.Address) bool {
	if c == nil || c.backend == nil {
		return false
	}
	var member bool
	if ok, err := c.backend.KVGet(c.addr, memberKey(account, market), &member); err != nil || !ok {
		return false
	}
	return member
}

func (c *Comptroller) assets(account common.Address) ([]common.Address, error) {
	var assets []common.Address
	if _, err := c.backend.KVGet(c.addr, assetsKey(account), &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// AccountLiquidity returns the remaining borrow capacity and the shortfall of
// account across its entered markets.
func (c *Comptroller) AccountLiquidity(account common.Address) (*big.Int, *big.Int, error) {
	return c.hypotheticalLiquidity(account, common.Address{}, nil)
}

func (c *Comptroller) hypotheticalLiquidity(account, borrowMarket common.Address, borrowAmount *big.Int) (*big.Int, *big.Int, error) {
	if c == nil || c.backend == nil {
		return nil, nil, errNilBackend
	}
	assets, err := c.assets(account)
	if err != nil {
		return nil, nil, err
	}
	collateral := big.NewInt(0)
	debt := big.NewInt(0)
	for _, addr := range assets {
		rec, err := c.listed(addr)
		if err != nil {
			return nil, nil, err
		}
		market, err := c.market(addr)
		if err != nil {
			return nil, nil, err
		}
		supplied, err := market.BalanceOfUnderlying(account)
		if err != nil {
			return nil, nil, err
		}
		collateral.Add(collateral, mulWad(supplied, rec.CollateralFactor))
		borrowed, err := market.BorrowBalance(account)
		if err != nil {
			return nil, nil, err
		}
		debt.Add(debt, borrowed)
		if addr == borrowMarket && borrowAmount != nil {
			debt.Add(debt, borrowAmount)
		}
	}
	if collateral.Cmp(debt) >= 0 {
		return collateral.Sub(collateral, debt), big.NewInt(0), nil
	}
	return big.NewInt(0), debt.Sub(debt, collateral), nil
}

func (c *Comptroller) mintAllowed(market, minter common.Address) error {
	return c.distribute(market, minter)
}

// distribute settles the supply index of market and credits supplier.
func (c *Comptroller) distribute(market, supplier common.Address) error {
	rec, err := c.listed(market)
	if err != nil {
		return err
	}
	if err := c.projectSupplyIndex(market, rec); err != nil {
		return err
	}
	if err := c.backend.KVPut(c.addr, marketKey(market), rec); err != nil {
		return err
	}
	return c.distributeSupplier(market, supplier, rec)
}

func (c *Comptroller) borrowAllowed(market, borrower common.Address, amount *big.Int) error {
	if _, err := c.listed(market); err != nil {
		return err
	}
	if !c.CheckMembership(borrower, market) {
		// Borrowing enters the market on the borrower's behalf.
		if err := c.enter(borrower, market); err != nil {
			return err
		}
	}
	_, shortfall, err := c.hypotheticalLiquidity(borrower, market, amount)
	if err != nil {
		return err
	}
	if shortfall.Sign() > 0 {
		return fmt.Errorf("%w: %s would be short by %s", ErrInsufficientLiquidity, borrower.Hex(), shortfall)
	}
	return nil
}

func (c *Comptroller) repayAllowed(market common.Address) error {
	_, err := c.listed(market)
	return err
}

// projectSupplyIndex advances rec to the current block without persisting it.
func (c *Comptroller) projectSupplyIndex(market common.Address, rec *marketRecord) error {
	now := c.backend.BlockNumber()
	if now <= rec.SupplyBlock {
		return nil
	}
	delta := now - rec.SupplyBlock
	if rec.Speed.Sign() > 0 {
		m, err := c.market(market)
		if err != nil {
			return err
		}
		supply := m.TotalSupply()
		if supply.Sign() > 0 {
			accrued := new(big.Int).Mul(rec.Speed, new(big.Int).SetUint64(delta))
			ratio := new(big.Int).Mul(accrued, doubleScale)
			ratio.Quo(ratio, supply)
			rec.SupplyIndex = new(big.Int).Add(rec.SupplyIndex, ratio)
		}
	}
	rec.SupplyBlock = now
	return nil
}

func (c *Comptroller) supplierIndex(market, supplier common.Address) (*big.Int, error) {
	index := new(big.Int)
	ok, err := c.backend.KVGet(c.addr, supplierIndexKey(market, supplier), index)
	if err != nil {
		return nil, err
	}
	if !ok || index.Sign() == 0 {
		return new(big.Int).Set(doubleScale), nil
	}
	return index, nil
}

// supplierDelta returns the reward earned by supplier since its last index.
func (c *Comptroller) supplierDelta(market, supplier common.Address, rec *marketRecord) (*big.Int, error) {
	index, err := c.supplierIndex(market, supplier)
	if err != nil {
		return nil, err
	}
	m, err := c.market(market)
	if err != nil {
		return nil, err
	}
	deltaIndex := new(big.Int).Sub(rec.SupplyIndex, index)
	if deltaIndex.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	earned := new(big.Int).Mul(m.BalanceOf(supplier), deltaIndex)
	return earned.Quo(earned, doubleScale), nil
}

func (c *Comptroller) distributeSupplier(market, supplier common.Address, rec *marketRecord) error {
	earned, err := c.supplierDelta(market, supplier, rec)
	if err != nil {
		return err
	}
	if err := c.backend.KVPut(c.addr, supplierIndexKey(market, supplier), rec.SupplyIndex); err != nil {
		return err
	}
	if earned.Sign() == 0 {
		return nil
	}
	accrued, err := c.accrued(supplier)
	if err != nil {
		return err
	}
	if err := c.backend.KVPut(c.addr, accruedKey(supplier), accrued.Add(accrued, earned)); err != nil {
		return err
	}
	c.emit(EventRewardAccrued, map[string]string{
		"market":   market.Hex(),
		"supplier": supplier.Hex(),
		"amount":   earned.String(),
	})
	return nil
}

func (c *Comptroller) accrued(holder common.Address) (*big.Int, error) {
	value := new(big.Int)
	if _, err := c.backend.KVGet(c.addr, accruedKey(holder), value); err != nil {
		return nil, err
	}
	return value, nil
}

// RewardAccrued returns the reward allocated to holder and not yet paid out,
// including what accrued since the last distribution.
func (c *Comptroller) RewardAccrued(holder common.Address) (*big.Int, error) {
	if c == nil || c.backend == nil {
		return nil, errNilBackend
	}
	total, err := c.accrued(holder)
	if err != nil {
		return nil, err
	}
	markets, err := c.allMarkets()
	if err != nil {
		return nil, err
	}
	for _, market := range markets {
		rec, err := c.record(market)
		if err != nil {
			return nil, err
		}
		if err := c.projectSupplyIndex(market, rec); err != nil {
			return nil, err
		}
		earned, err := c.supplierDelta(market, holder, rec)
		if err != nil {
			return nil, err
		}
		total.Add(total, earned)
	}
	return total, nil
}

// ClaimReward distributes holder's supply rewards across all markets and pays
// them out of the comptroller's reward reserve. When the reserve cannot cover
// the allocation it stays accrued and nothing is paid. The paid amount is
// returned.
func (c *Comptroller) ClaimReward(holder common.Address) (*big.Int, error) {
	if c == nil || c.backend == nil {
		return nil, errNilBackend
	}
	markets, err := c.allMarkets()
	if err != nil {
		return nil, err
	}
	for _, market := range markets {
		if err := c.distribute(market, holder); err != nil {
			return nil, err
		}
	}
	accrued, err := c.accrued(holder)
	if err != nil {
		return nil, err
	}
	if accrued.Sign() == 0 {
		return big.NewInt(0), nil
	}
	reward, err := c.backend.Token(c.rewardToken)
	if err != nil {
		return nil, err
	}
	if reward.BalanceOf(c.addr).Cmp(accrued) < 0 {
		return big.NewInt(0), nil
	}
	if err := reward.Transfer(c.addr, holder, accrued); err != nil {
		return nil, err
	}
	if err := c.backend.KVPut(c.addr, accruedKey(holder), big.NewInt(0)); err != nil {
		return nil, err
	}
	c.emit(EventRewardClaimed, map[string]string{"holder": holder.Hex(), "amount": accrued.String()})
	return accrued, nil
}

func (c *Comptroller) emit(kind string, attrs map[string]string) {
	c.backend.Emit(c.addr, &types.Event{Type: kind, Attributes: attrs})
}

var _ protocol.Comptroller = (*Comptroller)(nil)
