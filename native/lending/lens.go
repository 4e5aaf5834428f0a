package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/native/protocol"
)

// Lens is a stateless aggregator over the comptroller and the reward token.
type Lens struct {
	backend protocol.Backend
	addr    common.Address
}

// NewLens binds a lens at addr.
func NewLens(backend protocol.Backend, addr common.Address) *Lens {
	return &Lens{backend: backend, addr: addr}
}

func (l *Lens) Address() common.Address { return l.addr }

// RewardBalanceMetadata reports account's reward token holdings together with
// the reward still allocated to it by the comptroller. The reward token keeps
// no vote checkpoints, so Votes is zero and Delegate is unset.
func (l *Lens) RewardBalanceMetadata(rewardToken, comptroller, account common.Address) (protocol.RewardMetadata, error) {
	if l == nil || l.backend == nil {
		return protocol.RewardMetadata{}, errNilBackend
	}
	token, err := l.backend.Token(rewardToken)
	if err != nil {
		return protocol.RewardMetadata{}, err
	}
	risk, err := l.backend.Comptroller(comptroller)
	if err != nil {
		return protocol.RewardMetadata{}, err
	}
	allocated, err := risk.RewardAccrued(account)
	if err != nil {
		return protocol.RewardMetadata{}, err
	}
	return protocol.RewardMetadata{
		Balance:   token.BalanceOf(account),
		Votes:     big.NewInt(0),
		Allocated: allocated,
	}, nil
}

var _ protocol.Lens = (*Lens)(nil)
