package services

import (
	"testing"

	"propsearch-bknd/internal/models"
)

func mkBuckets(counts ...int) []models.GeoBucket {
	out := make([]models.GeoBucket, len(counts))
	for i, c := range counts {
		out[i] = models.GeoBucket{ID: string(rune('a' + i)), Count: c}
	}
	return out
}

func sumCounts(buckets []models.GeoBucket) int {
	sum := 0
	for _, b := range buckets {
		sum += b.Count
	}
	return sum
}

func TestReconcileNoOpWhenConsistent(t *testing.T) {
	buckets := mkBuckets(5, 3, 2)

	out, drifted := ReconcileBuckets(buckets, 10)
	if drifted {
		t.Fatal("no correction expected when sum matches total")
	}
	if sumCounts(out) != 10 {
		t.Fatalf("sum changed: %d", sumCounts(out))
	}
}

func TestReconcileScalesUpToTotal(t *testing.T) {
	// Capped point query saw 100 of 1000 matching rows.
	buckets := mkBuckets(50, 30, 20)

	out, drifted := ReconcileBuckets(buckets, 1000)
	if !drifted {
		t.Fatal("expected drift flag")
	}
	if sumCounts(out) != 1000 {
		t.Fatalf("corrected sum %d != 1000", sumCounts(out))
	}
	if out[0].Count != 500 || out[1].Count != 300 || out[2].Count != 200 {
		t.Fatalf("proportions lost: %d/%d/%d", out[0].Count, out[1].Count, out[2].Count)
	}
}

func TestReconcileExactWithRemainders(t *testing.T) {
	// 3 into 10: shares of 3.33 each; largest remainder keeps the sum exact.
	buckets := mkBuckets(1, 1, 1)

	out, _ := ReconcileBuckets(buckets, 10)
	if sumCounts(out) != 10 {
		t.Fatalf("sum %d != 10", sumCounts(out))
	}
}

func TestReconcileScalesDownAndDropsZeros(t *testing.T) {
	// Stale precomputed aggregate overcounts a thinned-out area.
	buckets := mkBuckets(100, 1)

	out, drifted := ReconcileBuckets(buckets, 50)
	if !drifted {
		t.Fatal("expected drift flag")
	}
	if sumCounts(out) != 50 {
		t.Fatalf("sum %d != 50", sumCounts(out))
	}
	for _, b := range out {
		if b.Count == 0 {
			t.Fatal("zero-count bucket not dropped")
		}
	}
}

func TestReconcileEmptyBuckets(t *testing.T) {
	out, drifted := ReconcileBuckets(nil, 100)
	if drifted || len(out) != 0 {
		t.Fatal("nothing to correct with no buckets")
	}
}

func TestReconcileDeterministic(t *testing.T) {
	first, _ := ReconcileBuckets(mkBuckets(7, 7, 7, 7), 123)
	for i := 0; i < 5; i++ {
		again, _ := ReconcileBuckets(mkBuckets(7, 7, 7, 7), 123)
		for j := range again {
			if again[j].ID != first[j].ID || again[j].Count != first[j].Count {
				t.Fatalf("nondeterministic correction at %d", j)
			}
		}
	}
}
