package votetower

// Signers is the set of public keys that signed the enclosing
// transaction, as seen by an authorization or withdrawal instruction.
type Signers map[PublicKey]struct{}

// Contains reports whether key signed.
func (s Signers) Contains(key PublicKey) bool {
	_, ok := s[key]
	return ok
}

// InitializeAccount sets up a freshly created vote account. It rejects
// accounts that already carry a non-default authorized voter.
func (s *State) InitializeAccount(init VoteInit, clock Clock) *InstructionError {
	var zero PublicKey
	if s.AuthorizedVoter != zero {
		return &InstructionError{Code: InstrAccountAlreadyInitialized}
	}
	*s = *New(init, clock)
	return nil
}

// PreviousSigner reports whether key is the current authorized voter or
// any non-default entry of the prior-voters history, which is
// sufficient standing to submit votes recorded before a reauthorization
// took effect.
func (s *State) PreviousSigner(key PublicKey) bool {
	if key == s.AuthorizedVoter {
		return true
	}
	var zero PublicKey
	for _, pv := range s.priorVoters.entries() {
		if pv.Pubkey != zero && pv.Pubkey == key {
			return true
		}
	}
	return false
}

// Authorize changes either the authorized voter or the authorized
// withdrawer, depending on kind. Changing the voter requires the current
// voter's signature and is rejected if a reauthorization already
// happened this epoch; changing the withdrawer requires the current
// withdrawer's signature.
func (s *State) Authorize(newAuthority PublicKey, kind VoteAuthorize, signers Signers, clock Clock) *InstructionError {
	switch kind {
	case AuthorizeVoter:
		if !signers.Contains(s.AuthorizedVoter) {
			return &InstructionError{Code: InstrMissingRequiredSignature}
		}
		if s.AuthorizedVoterEpoch == clock.Epoch {
			return voteErrorToInstruction(ErrTooSoonToReauthorize)
		}
		s.priorVoters.append(PriorVoter{
			Pubkey:     s.AuthorizedVoter,
			StartEpoch: s.AuthorizedVoterEpoch,
			EndEpoch:   clock.Epoch,
			Slot:       clock.Slot,
		})
		s.AuthorizedVoter = newAuthority
		s.AuthorizedVoterEpoch = clock.Epoch
	case AuthorizeWithdrawer:
		if !signers.Contains(s.AuthorizedWithdrawer) {
			return &InstructionError{Code: InstrMissingRequiredSignature}
		}
		s.AuthorizedWithdrawer = newAuthority
	}
	return nil
}

// UpdateNode changes the node identity that casts votes on the
// validator's behalf. It requires the authorized voter's signature.
func (s *State) UpdateNode(nodePubkey PublicKey, signers Signers) *InstructionError {
	if !signers.Contains(s.AuthorizedVoter) {
		return &InstructionError{Code: InstrMissingRequiredSignature}
	}
	s.NodePubkey = nodePubkey
	return nil
}

// Withdraw deducts lamports from the caller-tracked account balance,
// requiring the authorized withdrawer's signature and rejecting an
// attempt to withdraw more than the account holds.
func (s *State) Withdraw(accountLamports uint64, lamports uint64, signers Signers) (uint64, *InstructionError) {
	if !signers.Contains(s.AuthorizedWithdrawer) {
		return accountLamports, &InstructionError{Code: InstrMissingRequiredSignature}
	}
	if lamports > accountLamports {
		return accountLamports, &InstructionError{Code: InstrInsufficientFunds}
	}
	return accountLamports - lamports, nil
}

func voteErrorToInstruction(ve *VoteError) *InstructionError {
	return &InstructionError{Code: InstrCustomError, Custom: uint32(ve.Code)}
}
