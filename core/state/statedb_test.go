package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"fildawallet/core/types"
	"fildawallet/storage"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	contract = common.HexToAddress("0x00000000000000000000000000000000c0ffee00")
)

type record struct {
	Owner  common.Address
	Amount *big.Int
	Exit   uint64
}

func TestTransferAndInsufficientBalance(t *testing.T) {
	s := New(storage.NewMemDB())
	if err := s.AddBalance(alice, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := s.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := s.GetBalance(alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	if got := s.GetBalance(bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
	if err := s.Transfer(bob, alice, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := s.AddBalance(alice, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestSnapshotRevertRestoresEverything(t *testing.T) {
	s := New(storage.NewMemDB())
	if err := s.AddBalance(alice, big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := s.KVPut(contract, []byte("r"), record{Owner: alice, Amount: big.NewInt(1)}); err != nil {
		t.Fatalf("put: %v", err)
	}

	outer := s.Snapshot()
	if err := s.Transfer(alice, bob, big.NewInt(7)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	inner := s.Snapshot()
	if err := s.KVPut(contract, []byte("r"), record{Owner: bob, Amount: big.NewInt(2), Exit: 9}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	s.SetNonce(contract, 3)
	s.AddLog(&types.Event{Type: "test"})

	s.RevertToSnapshot(inner)
	var got record
	if ok, err := s.KVGet(contract, []byte("r"), &got); err != nil || !ok {
		t.Fatalf("get after inner revert: ok=%v err=%v", ok, err)
	}
	if got.Owner != alice || got.Amount.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("unexpected record after inner revert: %+v", got)
	}
	if s.GetNonce(contract) != 0 {
		t.Fatalf("nonce not reverted")
	}
	if len(s.Logs()) != 0 {
		t.Fatalf("log not reverted")
	}
	if s.GetBalance(bob).Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("outer transfer lost by inner revert")
	}

	s.RevertToSnapshot(outer)
	if s.GetBalance(alice).Cmp(big.NewInt(10)) != 0 || s.GetBalance(bob).Sign() != 0 {
		t.Fatalf("balances not restored: alice=%s bob=%s", s.GetBalance(alice), s.GetBalance(bob))
	}
}

func TestCommitPersistsAndReloads(t *testing.T) {
	db := storage.NewMemDB()
	s := New(db)
	if err := s.AddBalance(alice, big.NewInt(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	s.SetNonce(contract, 2)
	if err := s.KVPut(contract, []byte("r"), record{Owner: alice, Amount: big.NewInt(3)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.AddLog(&types.Event{Type: "committed"})
	logs, err := s.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(logs) != 1 || logs[0].Type != "committed" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	reloaded := New(db)
	if reloaded.GetBalance(alice).Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance not persisted")
	}
	if reloaded.GetNonce(contract) != 2 {
		t.Fatalf("nonce not persisted")
	}
	var got record
	if ok, err := reloaded.KVGet(contract, []byte("r"), &got); err != nil || !ok {
		t.Fatalf("record not persisted: ok=%v err=%v", ok, err)
	}

	reloaded.KVDelete(contract, []byte("r"))
	if _, err := reloaded.Commit(); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	if ok, _ := New(db).KVGet(contract, []byte("r"), nil); ok {
		t.Fatalf("expected record to be deleted")
	}
}

func TestRevertToInvalidSnapshotPanics(t *testing.T) {
	s := New(storage.NewMemDB())
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s.RevertToSnapshot(5)
}

type failingGetDB struct {
	*storage.MemDB
	fail bool
}

func (f *failingGetDB) Get(key []byte) ([]byte, error) {
	if f.fail {
		return nil, errors.New("disk unavailable")
	}
	return f.MemDB.Get(key)
}

func TestFailedReadIsNotCached(t *testing.T) {
	db := &failingGetDB{MemDB: storage.NewMemDB()}
	seed := New(db)
	if err := seed.AddBalance(alice, big.NewInt(9)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := seed.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	s := New(db)
	db.fail = true
	if s.GetBalance(alice).Sign() != 0 || s.Error() == nil {
		t.Fatalf("expected a zero read and a recorded error")
	}
	if _, err := s.Commit(); err == nil {
		t.Fatalf("commit must surface the read error")
	}

	db.fail = false
	s.Discard()
	if s.Error() != nil {
		t.Fatalf("discard must clear the read error")
	}
	if got := s.GetBalance(alice); got.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("balance = %s, want 9 reloaded from storage", got)
	}
}
