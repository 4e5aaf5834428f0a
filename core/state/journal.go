package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification that can be undone.
type journalEntry interface {
	revert(*StateDB)
}

// journal records the ordered list of state modifications applied since the
// last commit so that any suffix can be rolled back.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

func (j *journal) revertTo(s *StateDB, id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:id]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}

type balanceChange struct {
	addr common.Address
	prev *uint256.Int
}

func (c balanceChange) revert(s *StateDB) {
	s.balances[c.addr] = c.prev
}

type nonceChange struct {
	addr common.Address
	prev uint64
}

func (c nonceChange) revert(s *StateDB) {
	s.nonces[c.addr] = c.prev
}

type storageChange struct {
	addr common.Address
	key  string
	prev []byte
}

func (c storageChange) revert(s *StateDB) {
	s.storage[c.addr][c.key] = c.prev
}

type logChange struct{}

func (logChange) revert(s *StateDB) {
	if n := len(s.logs); n > 0 {
		s.logs = s.logs[:n-1]
	}
}
