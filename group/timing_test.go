package group

import (
	"errors"
	"testing"
	"time"
)

// assertConstantTime runs a and b n times each and logs (without failing
// the test) if their average runtimes diverge by more than 1%, a cheap
// smoke test for secret-dependent branching.
func assertConstantTime(t *testing.T, a, b func(), n int) {
	t.Helper()

	var sumA, sumB time.Duration
	for i := 0; i < n; i++ {
		s := time.Now()
		a()
		sumA += time.Since(s)

		s = time.Now()
		b()
		sumB += time.Since(s)
	}
	sumA /= time.Duration(n)
	sumB /= time.Duration(n)

	diff := sumA - sumB
	if diff < 0 {
		diff = -diff
	}
	avg := (sumA + sumB) / 2
	if avg == 0 {
		return
	}
	ratio := float64(diff) / float64(avg) * 100
	if ratio > 1 {
		t.Log(errors.New("non constant time"))
	}
}

// TestBaseMultConstantTime checks that BaseMult's runtime does not depend
// on whether the scalar is all-zero or uniformly random.
func TestBaseMultConstantTime(t *testing.T) {
	zero := ZeroScalar()
	random := RandomScalar()

	assertConstantTime(t, func() {
		BaseMult(zero)
	}, func() {
		BaseMult(random)
	}, 2000)
}

// TestPointMultConstantTime checks the same property for Point.Mult against
// a fixed base.
func TestPointMultConstantTime(t *testing.T) {
	base := BaseMult(RandomScalar())
	zero := ZeroScalar()
	random := RandomScalar()

	assertConstantTime(t, func() {
		base.Mult(zero)
	}, func() {
		base.Mult(random)
	}, 2000)
}
