package pageengine

import "testing"

func pkey(b byte) PublicKey {
	var k PublicKey
	k[0] = b
	return k
}

func TestMemLockSetCollision(t *testing.T) {
	locks := newMemLockSet()
	a, b := pkey(1), pkey(2)

	if !locks.acquire(a, &b) {
		t.Fatal("first acquire should succeed on an empty lock set")
	}
	if locks.acquire(a, nil) {
		t.Error("second acquire on the same caller should collide")
	}
	if locks.acquire(pkey(3), &b) {
		t.Error("acquire colliding only on destination should collide")
	}

	locks.release(a, &b)
	if !locks.acquire(a, &b) {
		t.Error("acquire should succeed again after release")
	}
}

func TestMemLockSetDisjointKeysDoNotCollide(t *testing.T) {
	locks := newMemLockSet()
	a, b := pkey(1), pkey(2)
	c, d := pkey(3), pkey(4)

	if !locks.acquire(a, &b) {
		t.Fatal("first acquire should succeed")
	}
	if !locks.acquire(c, &d) {
		t.Error("disjoint key set should not collide")
	}
}
