package votetower

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	init := VoteInit{NodePubkey: key(1), AuthorizedVoter: key(2), AuthorizedWithdrawer: key(3), Commission: 10}
	s := New(init, Clock{Epoch: 2})
	s.ProcessSlotVoteUnchecked(10)
	s.ProcessSlotVoteUnchecked(11)
	s.IncrementCredits(2)
	s.priorVoters.append(PriorVoter{Pubkey: key(9), StartEpoch: 0, EndEpoch: 2, Slot: 5})
	s.HasBeenSlashed = true
	s.LastTimestamp = BlockTimestamp{Slot: 11, Timestamp: 12345}

	buf, err := s.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	if got.NodePubkey != s.NodePubkey || got.AuthorizedVoter != s.AuthorizedVoter {
		t.Error("identity fields did not round-trip")
	}
	if len(got.Votes) != len(s.Votes) {
		t.Fatalf("len(Votes) = %d, want %d", len(got.Votes), len(s.Votes))
	}
	for i := range s.Votes {
		if got.Votes[i] != s.Votes[i] {
			t.Errorf("Votes[%d] = %+v, want %+v", i, got.Votes[i], s.Votes[i])
		}
	}
	if got.Credits() != s.Credits() {
		t.Errorf("Credits() = %d, want %d", got.Credits(), s.Credits())
	}
	if got.HasBeenSlashed != true {
		t.Error("HasBeenSlashed did not round-trip")
	}
	if len(got.PriorVoters()) != 1 || got.PriorVoters()[0].Pubkey != key(9) {
		t.Errorf("PriorVoters() = %+v, want one entry for key(9)", got.PriorVoters())
	}
	if got.LastTimestamp != s.LastTimestamp {
		t.Errorf("LastTimestamp = %+v, want %+v", got.LastTimestamp, s.LastTimestamp)
	}
}

func TestSizeOfIsPositive(t *testing.T) {
	size, err := SizeOf()
	if err != nil {
		t.Fatalf("SizeOf() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("SizeOf() = %d, want > 0", size)
	}
}
