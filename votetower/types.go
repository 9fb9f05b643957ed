// Package votetower implements the per-validator vote state machine: a
// bounded lockout stack with exponential confirmation weights, root-slot
// commitment, epoch credits, authorization, and slashing detection.
package votetower

// PublicKey identifies a validator identity, an authorized signer, or a
// withdrawer. The zero value is the sentinel "unset" key.
type PublicKey [32]byte

// Hash is a 32-byte content or block-state digest.
type Hash [32]byte

// Slot is a monotonically increasing position in the proof-of-history
// stream.
type Slot uint64

// Epoch buckets a fixed-size run of slots for credits and authorization.
type Epoch uint64

// UnixTimestamp is a wall-clock seconds value carried by a Vote.
type UnixTimestamp int64

// Clock is the read-only external time witness.
type Clock struct {
	Epoch         Epoch
	Slot          Slot
	UnixTimestamp UnixTimestamp
}

// SlotHash is one entry of the SlotHashes witness: a slot and the hash
// observed at that slot. The witness is ordered newest-first.
type SlotHash struct {
	Slot Slot
	Hash Hash
}

// SlotHistoryCheck is the result of querying SlotHistory for a given slot.
type SlotHistoryCheck uint8

const (
	SlotHistoryFound SlotHistoryCheck = iota
	SlotHistoryNotFound
	SlotHistoryTooOld
)

// SlotHistory is a queryable ancestry of the current bank, used only by
// the slashing detector to confirm a slot is not one of this bank's own
// ancestors before latching has_been_slashed.
type SlotHistory interface {
	Check(slot Slot) SlotHistoryCheck
}

// Vote is a client-submitted batch of slots plus the hash the client
// observed at the newest of those slots.
type Vote struct {
	Slots     []Slot
	Hash      Hash
	Timestamp *UnixTimestamp
}

// NewVote builds a Vote with no timestamp attached.
func NewVote(slots []Slot, hash Hash) Vote {
	return Vote{Slots: slots, Hash: hash}
}

// VoteAuthorize selects which authority authorize() is changing.
type VoteAuthorize uint8

const (
	AuthorizeVoter VoteAuthorize = iota
	AuthorizeWithdrawer
)

// BlockTimestamp is the most recent (slot, timestamp) pair accepted by
// process_timestamp.
type BlockTimestamp struct {
	Slot      Slot
	Timestamp UnixTimestamp
}

// VoteInit carries the parameters for InitializeAccount.
type VoteInit struct {
	NodePubkey          PublicKey
	AuthorizedVoter     PublicKey
	AuthorizedWithdrawer PublicKey
	Commission          uint8
}

// priorVoterCapacity is the fixed size of the prior-voters ring buffer:
// how many epochs a voter can be remembered for slashing.
const priorVoterCapacity = 32

// PriorVoter is one entry of the prior-voters ring: the previously
// authorized voter and the epoch range for which it held authority, plus
// the slot at which the switch happened.
type PriorVoter struct {
	Pubkey     PublicKey
	StartEpoch Epoch
	EndEpoch   Epoch
	Slot       Slot
}

// priorVoterRing is a fixed-capacity circular log of PriorVoter entries.
// The empty sentinel is the default (zero) PublicKey; enumeration skips
// defaults.
type priorVoterRing struct {
	buf [priorVoterCapacity]PriorVoter
	idx int
}

func newPriorVoterRing() priorVoterRing {
	return priorVoterRing{idx: priorVoterCapacity - 1}
}

// append records a prior delegate and when the switch happened, to
// support later slashing analysis.
func (r *priorVoterRing) append(item PriorVoter) {
	r.idx = (r.idx + 1) % priorVoterCapacity
	r.buf[r.idx] = item
}

// entries returns the non-default entries currently held, in no
// particular order (the ring does not track insertion order beyond the
// cursor).
func (r *priorVoterRing) entries() []PriorVoter {
	var out []PriorVoter
	var zero PublicKey
	for _, v := range r.buf {
		if v.Pubkey != zero {
			out = append(out, v)
		}
	}
	return out
}
