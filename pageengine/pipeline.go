package pageengine

import (
	"sync"

	"github.com/holiman/uint256"
)

// Engine is the page-addressed executor. A single read-write lock
// guards the page table and the key allocation index; a separate
// mutex-backed lock set gives each in-flight call exclusive access to
// the keys it touches, letting disjoint calls execute concurrently
// while still holding the table lock only for reads.
type Engine struct {
	mu          sync.RWMutex
	pageTable   []*Page
	allocated   *allocatedPages
	locks       *memLockSet
	maxParallel int
}

// NewEngine builds an empty page table. maxParallel bounds how many
// calls in a batch execute their contract dispatch concurrently.
func NewEngine(maxParallel int) *Engine {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Engine{
		allocated:   newAllocatedPages(),
		locks:       newMemLockSet(),
		maxParallel: maxParallel,
	}
}

// Genesis seeds the table with an initial account, bypassing the
// pipeline's lock discipline; it is meant for test and bootstrap setup
// only, never for in-flight batch processing.
func (e *Engine) Genesis(owner PublicKey, contract ContractID, balance *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.allocated.allocate(owner)
	page := newPage(owner, contract)
	page.Balance = balance
	e.setPage(idx, page)
}

// Lookup returns a copy of the page owned by key, if allocated.
func (e *Engine) Lookup(key PublicKey) (Page, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx, ok := e.allocated.lookup(key)
	if !ok {
		return Page{}, false
	}
	return *e.pageTable[idx], true
}

func (e *Engine) setPage(idx int, page *Page) {
	if idx == len(e.pageTable) {
		e.pageTable = append(e.pageTable, page)
		return
	}
	e.pageTable[idx] = page
}

// ExecuteBatch runs every call in calls through the six-stage pipeline:
// acquire per-key locks, validate debits, discover new destination
// keys, allocate pages for them, then load and execute under a
// balance-conservation check, finally releasing the locks taken in the
// first stage. Calls that collide on a key, fail validation, or violate
// conservation are reported uncommitted; they never block calls that
// touch disjoint keys.
func (e *Engine) ExecuteBatch(calls []Call) []CallResult {
	n := len(calls)
	results := make([]CallResult, n)
	for i, c := range calls {
		results[i].Call = c
	}

	acquired := e.acquireMemoryLocks(calls)
	defer e.releaseMemoryLocks(calls, acquired)

	callerIdx, validated := e.validateDebits(calls, acquired, results)
	missing := e.findNewKeys(calls, validated)
	e.allocateKeys(missing)
	e.loadAndExecute(calls, callerIdx, validated, results)

	return results
}

// acquireMemoryLocks takes the caller/destination lock for every call
// that does not collide with one already granted in this batch.
func (e *Engine) acquireMemoryLocks(calls []Call) []bool {
	acquired := make([]bool, len(calls))
	for i, c := range calls {
		acquired[i] = e.locks.acquire(c.Caller, c.Destination)
	}
	return acquired
}

func (e *Engine) releaseMemoryLocks(calls []Call, acquired []bool) {
	for i, c := range calls {
		if acquired[i] {
			e.locks.release(c.Caller, c.Destination)
		}
	}
}

// validateDebits checks that each lock-holding call's caller page is
// known, not stale, on the right contract, and solvent for fee+amount.
func (e *Engine) validateDebits(calls []Call, acquired []bool, results []CallResult) (callerIdx []int, validated []bool) {
	callerIdx = make([]int, len(calls))
	validated = make([]bool, len(calls))

	e.mu.RLock()
	defer e.mu.RUnlock()

	for i, c := range calls {
		if !acquired[i] {
			results[i].Reason = "memory lock collision"
			continue
		}
		idx, ok := e.allocated.lookup(c.Caller)
		if !ok {
			results[i].Reason = "unknown caller"
			continue
		}
		page := e.pageTable[idx]
		if page.Owner != c.Caller {
			results[i].Reason = "owner mismatch"
			continue
		}
		if page.Version >= c.Version {
			results[i].Reason = "stale call version"
			continue
		}
		if page.Contract != c.Contract {
			results[i].Reason = "contract mismatch"
			continue
		}
		need := new(uint256.Int).Add(c.Fee, c.Amount)
		if page.Balance.Cmp(need) < 0 {
			results[i].Reason = "insufficient balance"
			continue
		}
		callerIdx[i] = idx
		validated[i] = true
	}
	return callerIdx, validated
}

// findNewKeys returns the destination keys referenced by validated
// calls that do not yet have a page, paired with the contract the
// first such call specifies for them.
func (e *Engine) findNewKeys(calls []Call, validated []bool) map[PublicKey]ContractID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	missing := make(map[PublicKey]ContractID)
	for i, c := range calls {
		if !validated[i] || c.Destination == nil {
			continue
		}
		if _, ok := e.allocated.lookup(*c.Destination); ok {
			continue
		}
		if _, ok := missing[*c.Destination]; !ok {
			missing[*c.Destination] = c.Contract
		}
	}
	return missing
}

// allocateKeys materializes a fresh, zero-balance page for every key in
// missing. This is the only stage that may grow the page table.
func (e *Engine) allocateKeys(missing map[PublicKey]ContractID) {
	if len(missing) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, contract := range missing {
		if _, ok := e.allocated.lookup(key); ok {
			continue
		}
		idx := e.allocated.allocate(key)
		e.setPage(idx, newPage(key, contract))
	}
}

// loadAndExecute dispatches every validated call's contract method
// under a single read lock held for the whole stage, running disjoint
// calls concurrently up to maxParallel and discarding any call whose
// result would violate balance conservation.
func (e *Engine) loadAndExecute(calls []Call, callerIdx []int, validated []bool, results []CallResult) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxParallel)

	for i, c := range calls {
		if !validated[i] {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c Call) {
			defer wg.Done()
			defer func() { <-sem }()
			e.executeOne(c, callerIdx[i], &results[i])
		}(i, c)
	}
	wg.Wait()
}

// executeOne runs a single validated call's contract dispatch and
// commits it only if the touched pages' total and same-contract
// balances are unchanged by the execution, aside from the debited fee.
func (e *Engine) executeOne(call Call, callerIdx int, result *CallResult) {
	pages := []*Page{e.pageTable[callerIdx]}
	if call.Destination != nil {
		idx, ok := e.allocated.lookup(*call.Destination)
		if !ok {
			result.Reason = "destination page missing"
			return
		}
		pages = append(pages, e.pageTable[idx])
	}

	snapshot := clonePages(pages)

	if pages[0].Balance.Cmp(call.Fee) < 0 {
		result.Reason = "insufficient fee"
		return
	}
	pages[0].Balance.Sub(pages[0].Balance, call.Fee)

	preSpendable, preTotal := conservationTotals(pages, call.Contract)

	if err := dispatch(call, pages); err != nil {
		restorePages(pages, snapshot)
		result.Reason = err.Error()
		return
	}

	postSpendable, postTotal := conservationTotals(pages, call.Contract)

	if postTotal.Cmp(preTotal) != 0 || postSpendable.Cmp(preSpendable) != 0 {
		restorePages(pages, snapshot)
		result.Reason = "conservation invariant violated"
		return
	}

	pages[0].Version++
	result.Committed = true
}

// conservationTotals sums the balances of pages whose contract matches
// contract (spendable under this call) and separately the grand total
// across all of pages.
func conservationTotals(pages []*Page, contract ContractID) (spendable, total *uint256.Int) {
	spendable = new(uint256.Int)
	total = new(uint256.Int)
	for _, p := range pages {
		total.Add(total, p.Balance)
		if p.Contract == contract {
			spendable.Add(spendable, p.Balance)
		}
	}
	return spendable, total
}

func clonePages(pages []*Page) []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = Page{
			Owner:    p.Owner,
			Contract: p.Contract,
			Balance:  new(uint256.Int).Set(p.Balance),
			Version:  p.Version,
			Memhash:  p.Memhash,
			Memory:   append([]byte(nil), p.Memory...),
		}
	}
	return out
}

func restorePages(pages []*Page, snapshot []Page) {
	for i, p := range pages {
		*p = snapshot[i]
	}
}
