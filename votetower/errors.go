package votetower

// VoteError is the taxonomy of errors a vote-processing operation can
// return. It wraps a sentinel so callers can both errors.Is() against the
// package-level vars below and compare the Code directly.
type VoteError struct {
	Code VoteErrorCode
}

// VoteErrorCode enumerates the distinct vote-rejection reasons.
type VoteErrorCode uint8

const (
	ErrCodeVoteTooOld VoteErrorCode = iota
	ErrCodeSlotsMismatch
	ErrCodeSlotHashMismatch
	ErrCodeEmptySlots
	ErrCodeTimestampTooOld
	ErrCodeTooSoonToReauthorize
	ErrCodeInvalidSlashTransaction
)

func (c VoteErrorCode) String() string {
	switch c {
	case ErrCodeVoteTooOld:
		return "vote_too_old"
	case ErrCodeSlotsMismatch:
		return "slots_mismatch"
	case ErrCodeSlotHashMismatch:
		return "slot_hash_mismatch"
	case ErrCodeEmptySlots:
		return "empty_slots"
	case ErrCodeTimestampTooOld:
		return "timestamp_too_old"
	case ErrCodeTooSoonToReauthorize:
		return "too_soon_to_reauthorize"
	case ErrCodeInvalidSlashTransaction:
		return "invalid_slash_transaction"
	default:
		return "unknown"
	}
}

func (e *VoteError) Error() string {
	return "votetower: " + e.Code.String()
}

// Sentinel instances for errors.Is comparisons; each VoteError produced
// by this package wraps one of these codes.
var (
	ErrVoteTooOld             = &VoteError{Code: ErrCodeVoteTooOld}
	ErrSlotsMismatch          = &VoteError{Code: ErrCodeSlotsMismatch}
	ErrSlotHashMismatch       = &VoteError{Code: ErrCodeSlotHashMismatch}
	ErrEmptySlots             = &VoteError{Code: ErrCodeEmptySlots}
	ErrTimestampTooOld        = &VoteError{Code: ErrCodeTimestampTooOld}
	ErrTooSoonToReauthorize   = &VoteError{Code: ErrCodeTooSoonToReauthorize}
	ErrInvalidSlashTransaction = &VoteError{Code: ErrCodeInvalidSlashTransaction}
)

// InstructionErrorCode mirrors the instruction-processing error surface
// external callers (account/transaction runtimes) are expected to map
// onto, independent of the VoteError taxonomy above.
type InstructionErrorCode uint8

const (
	InstrMissingRequiredSignature InstructionErrorCode = iota
	InstrUninitializedAccount
	InstrAccountAlreadyInitialized
	InstrInsufficientFunds
	InstrInvalidAccountData
	InstrAccountDataTooSmall
	InstrGenericError
	InstrCustomError
)

func (c InstructionErrorCode) String() string {
	switch c {
	case InstrMissingRequiredSignature:
		return "missing_required_signature"
	case InstrUninitializedAccount:
		return "uninitialized_account"
	case InstrAccountAlreadyInitialized:
		return "account_already_initialized"
	case InstrInsufficientFunds:
		return "insufficient_funds"
	case InstrInvalidAccountData:
		return "invalid_account_data"
	case InstrAccountDataTooSmall:
		return "account_data_too_small"
	case InstrGenericError:
		return "generic_error"
	case InstrCustomError:
		return "custom_error"
	default:
		return "unknown"
	}
}

// InstructionError is returned by the authorization/withdrawal/lifecycle
// operations in this package, which operate above the raw VoteState
// transition layer.
type InstructionError struct {
	Code   InstructionErrorCode
	Custom uint32 // populated only when Code == InstrCustomError
}

func (e *InstructionError) Error() string {
	if e.Code == InstrCustomError {
		return "votetower: custom error " + itoa(e.Custom)
	}
	return "votetower: " + e.Code.String()
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
