package wallet

import (
	"errors"
	"fmt"

	"fildawallet/native/protocol"
	"fildawallet/native/registry"
)

var (
	ErrNotOwner              = fmt.Errorf("wallet: caller is not the owner: %w", protocol.ErrUnauthorized)
	ErrNotWithdrawable       = errors.New("wallet: stake not withdrawable")
	ErrBatchNotWithdrawable  = errors.New("wallet: batch contains a target that is not withdrawable")
	ErrNoDebt                = errors.New("wallet: no outstanding debt")
	ErrInsufficientAllowance = errors.New("wallet: insufficient allowance")
	ErrInvalidAmount         = errors.New("wallet: amount must be positive")
	ErrRewardNotSwept        = errors.New("wallet: reward allocation not fully swept")
	ErrUnsupportedUnderlying = errors.New("wallet: market underlying not supported")
	ErrAlreadyInitialized    = errors.New("wallet: already initialised")
	ErrRegistryNotSealed     = registry.ErrRegistryNotSealed
	errNotInitialized        = errors.New("wallet: not initialised")
	errNilBackend            = errors.New("wallet: backend not configured")
)

// Names of the external collaborators reported in ProtocolError.
const (
	ProtocolRegistry    = "registry"
	ProtocolBank        = "bank"
	ProtocolHTT         = "htt"
	ProtocolFilda       = "filda"
	ProtocolDeposit     = "deposit"
	ProtocolDebt        = "debt"
	ProtocolComptroller = "comptroller"
	ProtocolLens        = "lens"
	ProtocolStaking     = "staking"
)

// ProtocolError reports a failure raised by an external collaborator.
type ProtocolError struct {
	Protocol string
	Method   string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wallet: %s.%s: %v", e.Protocol, e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func external(protocolName, method string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return err
	}
	return &ProtocolError{Protocol: protocolName, Method: method, Err: err}
}
