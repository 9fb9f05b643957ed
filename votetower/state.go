package votetower

// maxEpochCreditsHistory bounds how many (epoch, credits, prevCredits)
// entries are retained.
const maxEpochCreditsHistory = 64

// timestampSlotInterval is a slot-gap constant that no code in the package
// reads; ProcessTimestamp does not consult it.
const timestampSlotInterval = 4500

// EpochCredits is one retained (epoch, credits, prevCredits) entry.
type EpochCredits struct {
	Epoch        Epoch
	Credits      uint64
	PrevCredits  uint64
}

// State is the full vote account state machine: identity, authorization,
// the bounded lockout stack, root commitment, and epoch credit history.
type State struct {
	NodePubkey PublicKey

	AuthorizedVoter      PublicKey
	AuthorizedVoterEpoch Epoch
	priorVoters          priorVoterRing

	AuthorizedWithdrawer PublicKey
	Commission           uint8

	Votes []Lockout

	// RootSlot is nil until the lockout stack has popped its first entry.
	RootSlot *Slot

	epochCredits []EpochCredits

	LastTimestamp BlockTimestamp

	// HasBeenSlashed latches true and never resets once a double vote on
	// a non-ancestor slot has been detected.
	HasBeenSlashed bool
}

// New builds an account-initialized vote state from the given init
// parameters at the given clock.
func New(init VoteInit, clock Clock) *State {
	return &State{
		NodePubkey:           init.NodePubkey,
		AuthorizedVoter:      init.AuthorizedVoter,
		AuthorizedVoterEpoch: clock.Epoch,
		priorVoters:          newPriorVoterRing(),
		AuthorizedWithdrawer: init.AuthorizedWithdrawer,
		Commission:           init.Commission,
	}
}

// PriorVoters returns the recorded prior-delegate history.
func (s *State) PriorVoters() []PriorVoter {
	return s.priorVoters.entries()
}

// Credits returns the cumulative credit count carried by the most recent
// epoch entry on record, or zero if none have been recorded yet.
func (s *State) Credits() uint64 {
	if len(s.epochCredits) == 0 {
		return 0
	}
	return s.epochCredits[len(s.epochCredits)-1].Credits
}

// EpochCreditsHistory returns the retained epoch credit ledger, oldest
// first.
func (s *State) EpochCreditsHistory() []EpochCredits {
	return s.epochCredits
}

// LastLockout returns the most recently pushed lockout, if any.
func (s *State) LastLockout() (Lockout, bool) {
	if len(s.Votes) == 0 {
		return Lockout{}, false
	}
	return s.Votes[len(s.Votes)-1], true
}

// LastVotedSlot returns the slot of the most recent vote, if any.
func (s *State) LastVotedSlot() (Slot, bool) {
	l, ok := s.LastLockout()
	if !ok {
		return 0, false
	}
	return l.Slot, true
}

// NthRecentVote returns the lockout n positions back from the most
// recent vote (0 is the most recent).
func (s *State) NthRecentVote(n int) (Lockout, bool) {
	if n >= len(s.Votes) {
		return Lockout{}, false
	}
	return s.Votes[len(s.Votes)-1-n], true
}

// Slots returns the slots currently held in the lockout stack, oldest
// first.
func (s *State) Slots() []Slot {
	out := make([]Slot, len(s.Votes))
	for i, v := range s.Votes {
		out[i] = v.Slot
	}
	return out
}

// PopExpiredVotes discards lockouts from the back of the stack that have
// expired as of slot.
func (s *State) PopExpiredVotes(slot Slot) {
	for {
		last, ok := s.LastLockout()
		if !ok || !last.IsExpired(slot) {
			return
		}
		s.Votes = s.Votes[:len(s.Votes)-1]
	}
}

// DoubleLockouts walks the stack from the front and increments the
// confirmation count (doubling the lockout period) of any entry whose
// distance from the top of the stack exceeds its current confirmation
// count.
func (s *State) DoubleLockouts() {
	stackDepth := len(s.Votes)
	for i := range s.Votes {
		if stackDepth > i+int(s.Votes[i].ConfirmationCount)+1 {
			s.Votes[i].ConfirmationCount++
		}
	}
}

// ProcessSlotVoteUnchecked records a vote on slot without validating it
// against any witness; a root transition it causes is credited to epoch
// 0. Used by the slashing replay that builds a hypothetical state purely
// to compare lockout-stack shape.
func (s *State) ProcessSlotVoteUnchecked(slot Slot) {
	s.processSlotAt(slot, 0)
}

// IncrementCredits records one credit earned in the given epoch,
// trimming the history to maxEpochCreditsHistory entries.
func (s *State) IncrementCredits(epoch Epoch) {
	if len(s.epochCredits) == 0 {
		s.epochCredits = append(s.epochCredits, EpochCredits{Epoch: epoch})
	} else {
		last := &s.epochCredits[len(s.epochCredits)-1]
		if last.Epoch != epoch {
			if last.Credits != last.PrevCredits {
				s.epochCredits = append(s.epochCredits, EpochCredits{
					Epoch:       epoch,
					Credits:     last.Credits,
					PrevCredits: last.Credits,
				})
			} else {
				last.Epoch = epoch
			}
		}
	}

	for len(s.epochCredits) > maxEpochCreditsHistory {
		s.epochCredits = s.epochCredits[1:]
	}

	s.epochCredits[len(s.epochCredits)-1].Credits++
}

// CheckSlotsAreValid walks vote.Slots against slotHashes (newest first)
// to confirm every slot the client claims to have voted on is actually
// present in the witness and that the hash observed at the newest slot
// matches.
func (s *State) CheckSlotsAreValid(vote Vote, slotHashes []SlotHash) error {
	i := 0
	j := len(slotHashes)

	last, hasLast := s.LastLockout()

	for i < len(vote.Slots) && j > 0 {
		if hasLast && vote.Slots[i] <= last.Slot {
			i++
			continue
		}
		if vote.Slots[i] != slotHashes[j-1].Slot {
			j--
			continue
		}
		i++
		j--
	}

	if j == len(slotHashes) {
		return ErrVoteTooOld
	}
	if i != len(vote.Slots) {
		return ErrSlotsMismatch
	}
	if slotHashes[j].Hash != vote.Hash {
		return ErrSlotHashMismatch
	}
	return nil
}

// ProcessVote validates vote against slotHashes and, if valid, applies
// every slot in order, crediting root transitions to clock.Epoch.
func (s *State) ProcessVote(vote Vote, slotHashes []SlotHash, clock Clock) error {
	if len(vote.Slots) == 0 {
		return ErrEmptySlots
	}
	if err := s.CheckSlotsAreValid(vote, slotHashes); err != nil {
		return err
	}
	for _, slot := range vote.Slots {
		s.processSlotAt(slot, clock.Epoch)
	}
	if vote.Timestamp != nil {
		newest := vote.Slots[len(vote.Slots)-1]
		return s.ProcessTimestamp(newest, *vote.Timestamp)
	}
	return nil
}

// processSlotAt applies one slot to the lockout stack and credits a root
// transition, if the push causes one, to epoch.
func (s *State) processSlotAt(slot Slot, epoch Epoch) {
	if last, ok := s.LastLockout(); ok && last.Slot >= slot {
		return
	}
	s.PopExpiredVotes(slot)

	if len(s.Votes) == maxLockoutHistory {
		popped := s.Votes[0]
		s.Votes = s.Votes[1:]
		root := popped.Slot
		s.RootSlot = &root
		s.IncrementCredits(epoch)
	}
	s.Votes = append(s.Votes, NewLockout(slot))
	s.DoubleLockouts()
}

// ProcessTimestamp accepts a (slot, timestamp) pair if it is
// monotonically no earlier than the last accepted pair. An exact repeat
// of the last pair is accepted; a pair that matches the last one in only
// its slot or only its timestamp is rejected, unless the last slot is 0.
func (s *State) ProcessTimestamp(slot Slot, ts UnixTimestamp) error {
	last := s.LastTimestamp
	if slot < last.Slot || ts < last.Timestamp {
		return ErrTimestampTooOld
	}
	if (slot == last.Slot || ts == last.Timestamp) &&
		(slot != last.Slot || ts != last.Timestamp) &&
		last.Slot != 0 {
		return ErrTimestampTooOld
	}
	s.LastTimestamp = BlockTimestamp{Slot: slot, Timestamp: ts}
	return nil
}

// CommissionSplit divides on lamports between the validator (commission
// share) and the delegator, clamping commission at 100. The bool return
// reports whether a genuine split occurred (neither 0 nor 100 percent).
func (s *State) CommissionSplit(on uint64) (validator, delegator uint64, split bool) {
	commission := s.Commission
	if commission > 100 {
		commission = 100
	}
	switch commission {
	case 0:
		return 0, on, false
	case 100:
		return on, 0, false
	default:
		mine := on * uint64(commission) / 100
		return mine, on - mine, true
	}
}
