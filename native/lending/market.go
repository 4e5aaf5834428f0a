package lending

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
	nativecommon "fildawallet/native/common"
	"fildawallet/native/protocol"
)

var (
	errNilBackend = errors.New("lending: backend not configured")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("lending: amount must be positive")
	// ErrInsufficientCash is returned when the market cannot fund a borrow.
	ErrInsufficientCash = errors.New("lending: insufficient market cash")
	// ErrRepayExceedsDebt is returned when a repayment is larger than the debt.
	ErrRepayExceedsDebt = errors.New("lending: repay amount exceeds borrow balance")
	// ErrComptrollerRejected is returned when the risk module vetoes an action.
	ErrComptrollerRejected = errors.New("lending: comptroller rejection")
)

// RepayAll requests repayment of the full outstanding balance.
var RepayAll = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const (
	EventMint      = "market.mint"
	EventBorrow    = "market.borrow"
	EventRepay     = "market.repay"
	EventAccrue    = "market.accrueInterest"
	stateKeyMarket = "market"
	tokensPrefix   = "tokens/"
	borrowPrefix   = "borrow/"
)

// riskHooks is implemented by the comptroller of the same package.
type riskHooks interface {
	mintAllowed(market, minter common.Address) error
	borrowAllowed(market, borrower common.Address, amount *big.Int) error
	repayAllowed(market common.Address) error
}

// Market is a money market share token. Suppliers receive shares at the
// current exchange rate and borrowers draw the underlying asset against
// collateral approved by the comptroller.
type Market struct {
	backend protocol.Backend
	addr    common.Address
	cfg     MarketConfig
	pauses  nativecommon.PauseView
}

// NewMarket binds a market stored under addr.
func NewMarket(backend protocol.Backend, addr common.Address, cfg MarketConfig) (*Market, error) {
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Market{backend: backend, addr: addr, cfg: cfg, pauses: cfg.Pauses}, nil
}

func (m *Market) Address() common.Address    { return m.addr }
func (m *Market) Underlying() common.Address { return m.cfg.Underlying }
func (m *Market) Symbol() string             { return m.cfg.Symbol }

// SetPauses replaces the action switches consulted before every mutation.
func (m *Market) SetPauses(p nativecommon.PauseView) {
	if m == nil {
		return
	}
	m.pauses = p
}

func (m *Market) isNative() bool { return m.cfg.Underlying == (common.Address{}) }

func (m *Market) hooks() (riskHooks, error) {
	comptroller, err := m.backend.Comptroller(m.cfg.Comptroller)
	if err != nil {
		return nil, err
	}
	hooks, ok := comptroller.(riskHooks)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrWrongContract, m.cfg.Comptroller.Hex())
	}
	return hooks, nil
}

func (m *Market) underlying() (protocol.Token, error) {
	return m.backend.Token(m.cfg.Underlying)
}

// Cash returns the underlying held by the market.
func (m *Market) Cash() (*big.Int, error) {
	if m == nil || m.backend == nil {
		return nil, errNilBackend
	}
	if m.isNative() {
		return m.backend.Balance(m.addr), nil
	}
	token, err := m.underlying()
	if err != nil {
		return nil, err
	}
	return token.BalanceOf(m.addr), nil
}

func (m *Market) loadState() (*marketState, error) {
	st := new(marketState)
	if _, err := m.backend.KVGet(m.addr, []byte(stateKeyMarket), st); err != nil {
		return nil, err
	}
	st.ensure()
	return st, nil
}

// current returns the market accounting projected to the current block
// without persisting it.
func (m *Market) current() (*marketState, *big.Int, error) {
	if m == nil || m.backend == nil {
		return nil, nil, errNilBackend
	}
	st, err := m.loadState()
	if err != nil {
		return nil, nil, err
	}
	cash, err := m.Cash()
	if err != nil {
		return nil, nil, err
	}
	now := m.backend.BlockNumber()
	if st.AccrualBlock == 0 && st.TotalBorrows.Sign() == 0 {
		st.AccrualBlock = now
		return st, cash, nil
	}
	if now <= st.AccrualBlock {
		return st, cash, nil
	}
	delta := now - st.AccrualBlock
	rate := m.cfg.Model.BorrowRatePerBlock(cash, st.TotalBorrows, st.TotalReserves)
	interest := computeInterest(st.TotalBorrows, rate, delta)
	if interest.Sign() > 0 {
		factor := new(big.Int).Mul(rate, new(big.Int).SetUint64(delta))
		st.BorrowIndex = new(big.Int).Add(st.BorrowIndex, mulWad(factor, st.BorrowIndex))
		st.TotalBorrows = new(big.Int).Add(st.TotalBorrows, interest)
		reserveCut := mulWad(bpsToWad(m.cfg.ReserveFactorBps), interest)
		st.TotalReserves = new(big.Int).Add(st.TotalReserves, reserveCut)
	}
	st.AccrualBlock = now
	return st, cash, nil
}

// AccrueInterest applies interest up to the current block.
func (m *Market) AccrueInterest() error {
	_, _, err := m.accrue()
	return err
}

func (m *Market) accrue() (*marketState, *big.Int, error) {
	before, err := m.loadState()
	if err != nil {
		return nil, nil, err
	}
	st, cash, err := m.current()
	if err != nil {
		return nil, nil, err
	}
	if st.AccrualBlock == before.AccrualBlock && st.TotalBorrows.Cmp(before.TotalBorrows) == 0 {
		return st, cash, nil
	}
	if err := m.backend.KVPut(m.addr, []byte(stateKeyMarket), st); err != nil {
		return nil, nil, err
	}
	if st.TotalBorrows.Cmp(before.TotalBorrows) != 0 {
		m.emit(EventAccrue, map[string]string{
			"interest":    new(big.Int).Sub(st.TotalBorrows, before.TotalBorrows).String(),
			"borrowIndex": st.BorrowIndex.String(),
		})
	}
	return st, cash, nil
}

func exchangeRate(st *marketState, cash, initial *big.Int) *big.Int {
	if st.TotalSupply.Sign() == 0 {
		return new(big.Int).Set(initial)
	}
	underlying := new(big.Int).Add(cash, st.TotalBorrows)
	underlying.Sub(underlying, st.TotalReserves)
	if underlying.Sign() <= 0 {
		return big.NewInt(0)
	}
	return divWad(underlying, st.TotalSupply)
}

// ExchangeRate returns underlying per share scaled by 1e18 as of the current
// block.
func (m *Market) ExchangeRate() (*big.Int, error) {
	st, cash, err := m.current()
	if err != nil {
		return nil, err
	}
	return exchangeRate(st, cash, m.cfg.InitialExchangeRate), nil
}

// TotalSupply returns the outstanding shares.
func (m *Market) TotalSupply() *big.Int {
	if m == nil || m.backend == nil {
		return big.NewInt(0)
	}
	st, err := m.loadState()
	if err != nil {
		return big.NewInt(0)
	}
	return st.TotalSupply
}

// TotalBorrows returns the outstanding debt as of the current block.
func (m *Market) TotalBorrows() (*big.Int, error) {
	st, _, err := m.current()
	if err != nil {
		return nil, err
	}
	return st.TotalBorrows, nil
}

func tokensKey(account common.Address) []byte {
	return append([]byte(tokensPrefix), account.Bytes()...)
}

func borrowKey(account common.Address) []byte {
	return append([]byte(borrowPrefix), account.Bytes()...)
}

// BalanceOf returns the shares held by account.
func (m *Market) BalanceOf(account common.Address) *big.Int {
	balance := new(big.Int)
	if m == nil || m.backend == nil {
		return balance
	}
	if ok, err := m.backend.KVGet(m.addr, tokensKey(account), balance); err != nil || !ok {
		return new(big.Int)
	}
	return balance
}

// BalanceOfUnderlying converts account's shares at the current exchange rate.
func (m *Market) BalanceOfUnderlying(account common.Address) (*big.Int, error) {
	rate, err := m.ExchangeRate()
	if err != nil {
		return nil, err
	}
	return mulWad(m.BalanceOf(account), rate), nil
}

func (m *Market) borrowSnapshot(account common.Address) (borrowSnapshot, error) {
	var snap borrowSnapshot
	if _, err := m.backend.KVGet(m.addr, borrowKey(account), &snap); err != nil {
		return borrowSnapshot{}, err
	}
	return snap, nil
}

// BorrowBalance returns the debt of account including interest to the
// current block.
func (m *Market) BorrowBalance(account common.Address) (*big.Int, error) {
	st, _, err := m.current()
	if err != nil {
		return nil, err
	}
	snap, err := m.borrowSnapshot(account)
	if err != nil {
		return nil, err
	}
	return snap.balance(st.BorrowIndex), nil
}

func (m *Market) pullUnderlying(from common.Address, amount *big.Int) error {
	if m.isNative() {
		return m.backend.Transfer(from, m.addr, amount)
	}
	token, err := m.underlying()
	if err != nil {
		return err
	}
	return token.TransferFrom(m.addr, from, m.addr, amount)
}

func (m *Market) pushUnderlying(to common.Address, amount *big.Int) error {
	if m.isNative() {
		return m.backend.Transfer(m.addr, to, amount)
	}
	token, err := m.underlying()
	if err != nil {
		return err
	}
	return token.Transfer(m.addr, to, amount)
}

// Mint supplies amount of the underlying from minter and credits shares at the
// current exchange rate. The minted share amount is returned.
func (m *Market) Mint(minter common.Address, amount *big.Int) (*big.Int, error) {
	if m == nil || m.backend == nil {
		return nil, errNilBackend
	}
	if err := nativecommon.Guard(m.pauses, actionMint); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	st, cash, err := m.accrue()
	if err != nil {
		return nil, err
	}
	hooks, err := m.hooks()
	if err != nil {
		return nil, err
	}
	if err := hooks.mintAllowed(m.addr, minter); err != nil {
		return nil, err
	}
	rate := exchangeRate(st, cash, m.cfg.InitialExchangeRate)
	if rate.Sign() == 0 {
		return nil, fmt.Errorf("lending: %s exchange rate is zero", m.cfg.Symbol)
	}
	minted := divWad(amount, rate)
	if minted.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s mints no shares", ErrInvalidAmount, amount)
	}
	if err := m.pullUnderlying(minter, amount); err != nil {
		return nil, err
	}
	st.TotalSupply = new(big.Int).Add(st.TotalSupply, minted)
	if err := m.backend.KVPut(m.addr, []byte(stateKeyMarket), st); err != nil {
		return nil, err
	}
	if err := m.backend.KVPut(m.addr, tokensKey(minter), new(big.Int).Add(m.BalanceOf(minter), minted)); err != nil {
		return nil, err
	}
	m.emit(EventMint, map[string]string{
		"minter": minter.Hex(),
		"amount": amount.String(),
		"shares": minted.String(),
	})
	return minted, nil
}

// Borrow draws amount of the underlying to borrower once the comptroller
// confirms the account stays within its borrow limit.
func (m *Market) Borrow(borrower common.Address, amount *big.Int) error {
	if m == nil || m.backend == nil {
		return errNilBackend
	}
	if err := nativecommon.Guard(m.pauses, actionBorrow); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	st, cash, err := m.accrue()
	if err != nil {
		return err
	}
	hooks, err := m.hooks()
	if err != nil {
		return err
	}
	if err := hooks.borrowAllowed(m.addr, borrower, amount); err != nil {
		return err
	}
	if cash.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s available, %s requested", ErrInsufficientCash, cash, amount)
	}
	snap, err := m.borrowSnapshot(borrower)
	if err != nil {
		return err
	}
	debt := snap.balance(st.BorrowIndex)
	next := borrowSnapshot{Principal: new(big.Int).Add(debt, amount), InterestIndex: cloneBig(st.BorrowIndex)}
	st.TotalBorrows = new(big.Int).Add(st.TotalBorrows, amount)
	if err := m.backend.KVPut(m.addr, borrowKey(borrower), next); err != nil {
		return err
	}
	if err := m.backend.KVPut(m.addr, []byte(stateKeyMarket), st); err != nil {
		return err
	}
	if err := m.pushUnderlying(borrower, amount); err != nil {
		return err
	}
	m.emit(EventBorrow, map[string]string{
		"borrower": borrower.Hex(),
		"amount":   amount.String(),
		"debt":     next.Principal.String(),
	})
	return nil
}

// RepayBorrow pays down borrower's debt with payer's funds. RepayAll settles
// the full balance; any other amount above the debt is rejected. The repaid
// amount is returned.
func (m *Market) RepayBorrow(payer, borrower common.Address, amount *big.Int) (*big.Int, error) {
	if m == nil || m.backend == nil {
		return nil, errNilBackend
	}
	if err := nativecommon.Guard(m.pauses, actionRepay); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	st, _, err := m.accrue()
	if err != nil {
		return nil, err
	}
	hooks, err := m.hooks()
	if err != nil {
		return nil, err
	}
	if err := hooks.repayAllowed(m.addr); err != nil {
		return nil, err
	}
	snap, err := m.borrowSnapshot(borrower)
	if err != nil {
		return nil, err
	}
	debt := snap.balance(st.BorrowIndex)
	repay := amount
	if amount.Cmp(RepayAll) == 0 {
		repay = debt
	}
	if repay.Cmp(debt) > 0 {
		return nil, fmt.Errorf("%w: owes %s, offered %s", ErrRepayExceedsDebt, debt, repay)
	}
	if repay.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := m.pullUnderlying(payer, repay); err != nil {
		return nil, err
	}
	next := borrowSnapshot{Principal: new(big.Int).Sub(debt, repay), InterestIndex: cloneBig(st.BorrowIndex)}
	total := new(big.Int).Sub(st.TotalBorrows, repay)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	st.TotalBorrows = total
	if err := m.backend.KVPut(m.addr, borrowKey(borrower), next); err != nil {
		return nil, err
	}
	if err := m.backend.KVPut(m.addr, []byte(stateKeyMarket), st); err != nil {
		return nil, err
	}
	m.emit(EventRepay, map[string]string{
		"payer":    payer.Hex(),
		"borrower": borrower.Hex(),
		"amount":   repay.String(),
		"debt":     next.Principal.String(),
	})
	return new(big.Int).Set(repay), nil
}

func (m *Market) emit(kind string, attrs map[string]string) {
	attrs["market"] = m.cfg.Symbol
	m.backend.Emit(m.addr, &types.Event{Type: kind, Attributes: attrs})
}

var _ protocol.Market = (*Market)(nil)
