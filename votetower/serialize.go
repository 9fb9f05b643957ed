package votetower

import "github.com/ethereum/go-ethereum/rlp"

// wireLockout is the RLP wire shape of Lockout.
type wireLockout struct {
	Slot              uint64
	ConfirmationCount uint32
}

// wireEpochCredits is the RLP wire shape of EpochCredits.
type wireEpochCredits struct {
	Epoch       uint64
	Credits     uint64
	PrevCredits uint64
}

// wirePriorVoter is the RLP wire shape of PriorVoter.
type wirePriorVoter struct {
	Pubkey     PublicKey
	StartEpoch uint64
	EndEpoch   uint64
	Slot       uint64
}

// wireState is the full RLP wire shape of State. RootSlot is carried as
// a (bool, uint64) pair rather than a pointer since rlp has no native
// optional-value encoding for non-terminal struct fields.
type wireState struct {
	NodePubkey PublicKey

	AuthorizedVoter      PublicKey
	AuthorizedVoterEpoch uint64
	PriorVoters          []wirePriorVoter

	AuthorizedWithdrawer PublicKey
	Commission           uint8

	Votes []wireLockout

	HasRootSlot bool
	RootSlot    uint64

	EpochCredits []wireEpochCredits

	LastTimestampSlot Slot
	LastTimestamp     uint64 // two's-complement bits of the signed timestamp; rlp has no signed integers

	HasBeenSlashed bool
}

// Serialize encodes the full vote state into its RLP wire form.
func (s *State) Serialize() ([]byte, error) {
	w := wireState{
		NodePubkey:           s.NodePubkey,
		AuthorizedVoter:      s.AuthorizedVoter,
		AuthorizedVoterEpoch: uint64(s.AuthorizedVoterEpoch),
		AuthorizedWithdrawer: s.AuthorizedWithdrawer,
		Commission:           s.Commission,
		LastTimestampSlot:    s.LastTimestamp.Slot,
		LastTimestamp:        uint64(s.LastTimestamp.Timestamp),
		HasBeenSlashed:       s.HasBeenSlashed,
	}

	for _, pv := range s.priorVoters.entries() {
		w.PriorVoters = append(w.PriorVoters, wirePriorVoter{
			Pubkey:     pv.Pubkey,
			StartEpoch: uint64(pv.StartEpoch),
			EndEpoch:   uint64(pv.EndEpoch),
			Slot:       uint64(pv.Slot),
		})
	}

	for _, v := range s.Votes {
		w.Votes = append(w.Votes, wireLockout{
			Slot:              uint64(v.Slot),
			ConfirmationCount: v.ConfirmationCount,
		})
	}

	if s.RootSlot != nil {
		w.HasRootSlot = true
		w.RootSlot = uint64(*s.RootSlot)
	}

	for _, ec := range s.epochCredits {
		w.EpochCredits = append(w.EpochCredits, wireEpochCredits{
			Epoch:       uint64(ec.Epoch),
			Credits:     ec.Credits,
			PrevCredits: ec.PrevCredits,
		})
	}

	return rlp.EncodeToBytes(&w)
}

// Deserialize decodes the RLP wire form produced by Serialize into a
// fresh State. The prior-voters ring is rebuilt in the order the
// entries were encoded, which does not reproduce the original cursor
// position but does preserve every entry's contents.
func Deserialize(data []byte) (*State, error) {
	var w wireState
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return nil, err
	}

	s := &State{
		NodePubkey:           w.NodePubkey,
		AuthorizedVoter:      w.AuthorizedVoter,
		AuthorizedVoterEpoch: Epoch(w.AuthorizedVoterEpoch),
		priorVoters:          newPriorVoterRing(),
		AuthorizedWithdrawer: w.AuthorizedWithdrawer,
		Commission:           w.Commission,
		LastTimestamp: BlockTimestamp{
			Slot:      w.LastTimestampSlot,
			Timestamp: UnixTimestamp(int64(w.LastTimestamp)),
		},
		HasBeenSlashed: w.HasBeenSlashed,
	}

	for _, pv := range w.PriorVoters {
		s.priorVoters.append(PriorVoter{
			Pubkey:     pv.Pubkey,
			StartEpoch: Epoch(pv.StartEpoch),
			EndEpoch:   Epoch(pv.EndEpoch),
			Slot:       Slot(pv.Slot),
		})
	}

	for _, v := range w.Votes {
		s.Votes = append(s.Votes, Lockout{
			Slot:              Slot(v.Slot),
			ConfirmationCount: v.ConfirmationCount,
		})
	}

	if w.HasRootSlot {
		root := Slot(w.RootSlot)
		s.RootSlot = &root
	}

	for _, ec := range w.EpochCredits {
		s.epochCredits = append(s.epochCredits, EpochCredits{
			Epoch:       Epoch(ec.Epoch),
			Credits:     ec.Credits,
			PrevCredits: ec.PrevCredits,
		})
	}

	return s, nil
}

// SizeOf returns the serialized size, in bytes, of a maximally
// populated vote state: a full lockout stack, a committed root, and a
// full epoch-credits history. Account storage layers use this to size
// the backing buffer up front.
func SizeOf() (int, error) {
	s := &State{}
	for i := 0; i < maxLockoutHistory; i++ {
		s.Votes = append(s.Votes, Lockout{Slot: Slot(i), ConfirmationCount: uint32(i)})
	}
	maxRoot := Slot(^uint64(0))
	s.RootSlot = &maxRoot
	for i := 0; i < maxEpochCreditsHistory; i++ {
		s.epochCredits = append(s.epochCredits, EpochCredits{
			Epoch:       Epoch(i),
			Credits:     uint64(i),
			PrevCredits: uint64(i),
		})
	}
	for i := 0; i < priorVoterCapacity; i++ {
		s.priorVoters.append(PriorVoter{
			Pubkey:     PublicKey{byte(i + 1)},
			StartEpoch: Epoch(i),
			EndEpoch:   Epoch(i + 1),
			Slot:       Slot(i),
		})
	}

	buf, err := s.Serialize()
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}
