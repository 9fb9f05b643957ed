package votetower

import "sort"

// SlashableSlots replays the union of this state's current votes and
// the slots of an incoming vote into a fresh, unvalidated state and
// returns the slots that end up committed there but were never part of
// this state's own history — i.e. slots the incoming vote claims that
// this validator would have had to skip or rewrite to produce its
// current tower. An empty result means the incoming vote is consistent
// with this validator's history.
func (s *State) SlashableSlots(incoming []Slot) []Slot {
	if s.sameOrOlder(incoming) {
		return nil
	}

	union := mergeSortedUnique(s.Slots(), incoming)

	replayed := &State{}
	for _, slot := range union {
		replayed.ProcessSlotVoteUnchecked(slot)
	}

	if s.equalPrefix(replayed.Slots()) {
		return nil
	}

	seen := make(map[Slot]struct{}, len(s.Slots()))
	for _, slot := range s.Slots() {
		seen[slot] = struct{}{}
	}
	var out []Slot
	for _, slot := range replayed.Slots() {
		if _, ok := seen[slot]; !ok {
			out = append(out, slot)
		}
	}
	return out
}

// sameOrOlder reports whether this state's most recent commitment (its
// newest vote, or its root, or zero) is no newer than the last slot of
// other.
func (s *State) sameOrOlder(other []Slot) bool {
	mine := Slot(0)
	if last, ok := s.LastVotedSlot(); ok {
		mine = last
	} else if s.RootSlot != nil {
		mine = *s.RootSlot
	}
	theirs := Slot(0)
	if len(other) > 0 {
		theirs = other[len(other)-1]
	}
	return mine <= theirs
}

// equalPrefix reports whether other, slot for slot, matches the
// concatenation of this state's root (if any) followed by its votes.
// The comparison is intentionally asymmetric: other may hold additional
// trailing slots without breaking equality.
func (s *State) equalPrefix(other []Slot) bool {
	var mine []Slot
	if s.RootSlot != nil {
		mine = append(mine, *s.RootSlot)
	}
	mine = append(mine, s.Slots()...)

	if len(other) < len(mine) {
		return false
	}
	for i, slot := range mine {
		if other[i] != slot {
			return false
		}
	}
	return true
}

// mergeSortedUnique returns the sorted, deduplicated union of a and b.
func mergeSortedUnique(a, b []Slot) []Slot {
	seen := make(map[Slot]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]Slot, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Slash checks slot against history and, if it is not one of this
// bank's own ancestors and SlashableSlots confirms a genuine conflict,
// latches HasBeenSlashed. The latch never clears once set.
func (s *State) Slash(history SlotHistory, slot Slot, incoming []Slot) {
	if history.Check(slot) != SlotHistoryNotFound {
		return
	}
	if len(s.SlashableSlots(incoming)) > 0 {
		s.HasBeenSlashed = true
	}
}

// SlashFromTransactionVotes is a convenience wrapper for detecting
// slashable behavior directly from a submitted Vote, as opposed to a
// bare slot list already extracted by a caller.
func (s *State) SlashFromTransactionVotes(history SlotHistory, vote Vote) {
	if len(vote.Slots) == 0 {
		return
	}
	newest := vote.Slots[len(vote.Slots)-1]
	s.Slash(history, newest, vote.Slots)
}
