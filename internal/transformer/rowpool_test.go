package transformer

import (
	"runtime"
	"sync"
	"testing"
)

func TestGetRow_LengthAndZeroing(t *testing.T) {
	const n = 3

	r := GetRow(n)
	if got := len(r.V); got != n {
		t.Fatalf("len(V)=%d; want %d", got, n)
	}
	r.V[0], r.V[1], r.V[2] = "AW00011000", "NASAW00011000", "M"
	r.Free()

	r2 := GetRow(n)
	defer r2.Free()
	for i, v := range r2.Values() {
		if v != nil {
			t.Fatalf("after reuse, V[%d]=%v; want nil", i, v)
		}
	}
}

func TestGetRow_CapacityGrowth(t *testing.T) {
	GetRow(2).Free()

	r := GetRow(9)
	defer r.Free()
	if len(r.V) != 9 || cap(r.V) < 9 {
		t.Fatalf("len=%d cap=%d; want 9", len(r.V), cap(r.V))
	}
}

func TestGetRow_ConcurrentSafety(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				r := GetRow(4)
				r.V[0], r.V[3] = "a", "d"
				r.Free()
			}
		}()
	}
	wg.Wait()
}

func TestGetRow_FreeReuseLowAllocs(t *testing.T) {
	GetRow(7).Free()
	runtime.GC()

	allocs := testing.AllocsPerRun(1000, func() {
		GetRow(7).Free()
	})
	if allocs > 0.1 {
		t.Fatalf("allocs/op=%0.2f; want <= 0.10", allocs)
	}
}

func BenchmarkGetRow_Free(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := GetRow(9)
		r.V[0] = "SO43697"
		r.Free()
	}
}
