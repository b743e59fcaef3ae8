package util

import "testing"

func TestHashKey_Stable(t *testing.T) {
	t.Parallel()

	for _, k := range []uint64{0, 1, 42, 1 << 63, ^uint64(0)} {
		if HashKey(k) != HashKey(k) {
			t.Fatalf("HashKey(%d) not stable", k)
		}
	}
	if HashKey(1) == HashKey(2) {
		t.Fatal("HashKey(1) and HashKey(2) collide")
	}
}

func TestBucketIndex_Range(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 7, 16, 1000, 1024} {
		for k := uint64(0); k < 512; k++ {
			i := BucketIndex(HashKey(k), n)
			if n <= 1 {
				if i != 0 {
					t.Fatalf("buckets=%d: want 0, got %d", n, i)
				}
				continue
			}
			if i < 0 || i >= n {
				t.Fatalf("buckets=%d: index %d out of range", n, i)
			}
		}
	}
}

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 17: 32, 1024: 1024, 1025: 2048, MaxBuckets + 1: MaxBuckets}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	t.Parallel()

	for n, want := range map[int]bool{-4: false, 0: false, 1: true, 2: true, 6: false, 1 << 20: true} {
		if got := IsPowerOfTwo(n); got != want {
			t.Fatalf("IsPowerOfTwo(%d) = %v, want %v", n, got, want)
		}
	}
}
