package pageengine

import "errors"

const (
	methodRealloc    = 0   // resize pages[0].Memory
	methodAssign     = 1   // set pages[0].Contract from call.Data if both sides are still DefaultContract
	methodMoveFunds  = 128 // transfer Amount from pages[0] to pages[1], DefaultContract only
)

var errUnknownMethod = errors.New("pageengine: unknown contract method")

// dispatch runs call against the pages it touches. pages[0] is always
// the caller's page; pages[1], if present, is the destination's. It
// mutates pages in place and returns an error only for a call shape the
// contract cannot interpret at all; balance-conservation rejection
// happens one layer up, after dispatch returns, by comparing totals.
func dispatch(call Call, pages []*Page) error {
	switch call.Method {
	case methodRealloc:
		return execRealloc(call, pages)
	case methodAssign:
		return execAssign(call, pages)
	case methodMoveFunds:
		return execMoveFunds(call, pages)
	default:
		return errUnknownMethod
	}
}

func execRealloc(call Call, pages []*Page) error {
	newSize := len(call.Data)
	pages[0].Memory = make([]byte, newSize)
	copy(pages[0].Memory, call.Data)
	return nil
}

func execAssign(call Call, pages []*Page) error {
	if call.Contract == DefaultContract && pages[0].Contract == DefaultContract {
		var target ContractID
		if len(call.Data) < len(target) {
			return errors.New("pageengine: assign requires a contract id in Data")
		}
		copy(target[:], call.Data)
		pages[0].Contract = target
	}
	return nil
}

func execMoveFunds(call Call, pages []*Page) error {
	if len(pages) < 2 {
		return errors.New("pageengine: move_funds requires a destination page")
	}
	if pages[0].Contract != DefaultContract || pages[1].Contract != DefaultContract {
		return nil
	}
	if pages[0].Balance.Cmp(call.Amount) < 0 {
		return nil
	}
	pages[0].Balance.Sub(pages[0].Balance, call.Amount)
	pages[1].Balance.Add(pages[1].Balance, call.Amount)
	return nil
}
