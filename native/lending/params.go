package lending

const (
	actionMint   = "mint"
	actionBorrow = "borrow"
	actionRepay  = "repay"
)

// ActionPauses exposes fine-grained switches for pausing individual market flows.
type ActionPauses struct {
	Mint   bool `toml:"Mint"`
	Borrow bool `toml:"Borrow"`
	Repay  bool `toml:"Repay"`
}

// IsPaused implements common.PauseView keyed by market action.
func (p ActionPauses) IsPaused(action string) bool {
	switch action {
	case actionMint:
		return p.Mint
	case actionBorrow:
		return p.Borrow
	case actionRepay:
		return p.Repay
	default:
		return false
	}
}
