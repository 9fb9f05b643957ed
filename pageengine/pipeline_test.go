package pageengine

import (
	"testing"

	"github.com/holiman/uint256"
)

func u256(v uint64) *uint256.Int { return new(uint256.Int).SetUint64(v) }

func TestExecuteBatchValidateDebitsMiss(t *testing.T) {
	e := NewEngine(4)
	caller := pkey(1)

	call := Call{Caller: caller, Contract: DefaultContract, Fee: u256(1), Amount: u256(0), Version: 1}
	results := e.ExecuteBatch([]Call{call})
	if results[0].Committed {
		t.Error("call against an unallocated caller page should not commit")
	}
}

func TestExecuteBatchValidateDebitsLowVersion(t *testing.T) {
	e := NewEngine(4)
	caller := pkey(1)
	e.Genesis(caller, DefaultContract, u256(10))

	// version 0 is not strictly greater than the fresh page's version 0.
	call := Call{Caller: caller, Contract: DefaultContract, Fee: u256(1), Amount: u256(0), Version: 0}
	results := e.ExecuteBatch([]Call{call})
	if results[0].Committed {
		t.Error("a call whose version does not exceed the page's should be rejected as stale")
	}
}

func TestExecuteBatchValidateDebitsInsufficientBalance(t *testing.T) {
	e := NewEngine(4)
	caller := pkey(1)
	e.Genesis(caller, DefaultContract, u256(1))

	call := Call{Caller: caller, Contract: DefaultContract, Fee: u256(1), Amount: u256(5), Version: 1}
	results := e.ExecuteBatch([]Call{call})
	if results[0].Committed {
		t.Error("a call requesting more than fee+amount available should be rejected")
	}
}

func TestExecuteBatchAllocatesNewDestination(t *testing.T) {
	e := NewEngine(4)
	caller, dest := pkey(1), pkey(2)
	e.Genesis(caller, DefaultContract, u256(10))

	call := Call{
		Caller: caller, Destination: &dest, Contract: DefaultContract,
		Method: methodMoveFunds, Fee: u256(1), Amount: u256(5), Version: 1,
	}
	e.ExecuteBatch([]Call{call})

	if _, ok := e.Lookup(dest); !ok {
		t.Error("destination page should have been allocated")
	}
}

func TestExecuteBatchMoveFunds(t *testing.T) {
	e := NewEngine(4)
	a, b := pkey(1), pkey(2)
	e.Genesis(a, DefaultContract, u256(10))

	call := Call{
		Caller: a, Destination: &b, Contract: DefaultContract,
		Method: methodMoveFunds, Fee: u256(1), Amount: u256(5), Version: 1,
	}
	results := e.ExecuteBatch([]Call{call})
	if !results[0].Committed {
		t.Fatalf("move_funds call should commit, got reason %q", results[0].Reason)
	}

	pa, _ := e.Lookup(a)
	pb, _ := e.Lookup(b)
	if pa.Balance.Uint64() != 4 {
		t.Errorf("A.Balance = %d, want 4 (10 - fee 1 - amount 5)", pa.Balance.Uint64())
	}
	if pb.Balance.Uint64() != 5 {
		t.Errorf("B.Balance = %d, want 5", pb.Balance.Uint64())
	}
}

func TestExecuteBatchMoveFundsInsufficientAmountDiscards(t *testing.T) {
	e := NewEngine(4)
	a, b := pkey(1), pkey(2)
	e.Genesis(a, DefaultContract, u256(10))
	e.Genesis(b, DefaultContract, u256(0))

	call := Call{
		Caller: a, Destination: &b, Contract: DefaultContract,
		Method: methodMoveFunds, Fee: u256(1), Amount: u256(20), Version: 1,
	}
	results := e.ExecuteBatch([]Call{call})
	if results[0].Committed {
		t.Error("a transfer exceeding the caller's balance should not commit")
	}
}

func TestExecuteBatchCollidingCallerKeysOnlyOneCommits(t *testing.T) {
	e := NewEngine(4)
	a, b, c := pkey(1), pkey(2), pkey(3)
	e.Genesis(a, DefaultContract, u256(10))

	call1 := Call{Caller: a, Destination: &b, Contract: DefaultContract, Method: methodMoveFunds, Fee: u256(1), Amount: u256(1), Version: 1}
	call2 := Call{Caller: a, Destination: &c, Contract: DefaultContract, Method: methodMoveFunds, Fee: u256(1), Amount: u256(1), Version: 1}

	results := e.ExecuteBatch([]Call{call1, call2})
	committed := 0
	for _, r := range results {
		if r.Committed {
			committed++
		}
	}
	if committed != 1 {
		t.Errorf("exactly one of two calls sharing a caller key should commit in a single batch, got %d", committed)
	}
}

func TestExecuteBatchDisjointCallsBothCommit(t *testing.T) {
	e := NewEngine(4)
	a, b, c, d := pkey(1), pkey(2), pkey(3), pkey(4)
	e.Genesis(a, DefaultContract, u256(10))
	e.Genesis(c, DefaultContract, u256(10))

	call1 := Call{Caller: a, Destination: &b, Contract: DefaultContract, Method: methodMoveFunds, Fee: u256(1), Amount: u256(1), Version: 1}
	call2 := Call{Caller: c, Destination: &d, Contract: DefaultContract, Method: methodMoveFunds, Fee: u256(1), Amount: u256(1), Version: 1}

	results := e.ExecuteBatch([]Call{call1, call2})
	if !results[0].Committed || !results[1].Committed {
		t.Errorf("disjoint calls should both commit, got %+v", results)
	}
}

func TestFillBlobRespectsBudget(t *testing.T) {
	a, b, c := pkey(1), pkey(2), pkey(3)
	results := []CallResult{
		{Call: Call{Caller: a, Destination: &b}, Committed: true},
		{Call: Call{Caller: a, Destination: &c}, Committed: true},
		{Call: Call{Caller: a}, Committed: true}, // no destination, excluded regardless of budget
	}
	blob := FillBlob(results, callBlobSize(results[0].Call))
	if len(blob) != 1 {
		t.Errorf("FillBlob with a one-call budget returned %d calls, want 1", len(blob))
	}
}
