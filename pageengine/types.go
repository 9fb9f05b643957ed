// Package pageengine implements a pipelined, page-addressed transaction
// executor: fine-grained per-key memory locks, debit validation, lazy
// page allocation, and parallel contract dispatch under a
// balance-conservation invariant.
package pageengine

import "github.com/holiman/uint256"

// PublicKey addresses a page. The zero value never identifies a real
// account.
type PublicKey [32]byte

// ContractID selects which handler interprets a call's Method.
type ContractID [4]byte

// DefaultContract is the built-in contract every freshly allocated page
// starts under; it implements balance transfer only.
var DefaultContract = ContractID{0, 0, 0, 0}

// Page is one unit of addressable state: an owner, the contract that
// governs it, a balance, a monotonically increasing version used for
// optimistic-lock staleness checks, a content digest field, and an opaque
// memory region a contract may resize and write to. The engine carries
// Memhash unchanged; it never computes or updates it from Memory.
type Page struct {
	Owner    PublicKey
	Contract ContractID
	Balance  *uint256.Int
	Version  uint64
	Memhash  [32]byte
	Memory   []byte
}

func newPage(owner PublicKey, contract ContractID) *Page {
	return &Page{
		Owner:    owner,
		Contract: contract,
		Balance:  new(uint256.Int),
	}
}

// Call is one transaction's request against the page table: a caller
// key, an optional destination, the contract and method being invoked,
// a fee and transfer amount, and the optimistic version the caller
// believes its own page is at.
type Call struct {
	Caller      PublicKey
	Destination *PublicKey
	Contract    ContractID
	Method      uint8
	Fee         *uint256.Int
	Amount      *uint256.Int
	Version     uint64
	Data        []byte
}

// CallResult is the outcome of running one Call through the pipeline.
type CallResult struct {
	Call      Call
	Committed bool
	Reason    string
}
