package services

import (
	"sort"

	"propsearch-bknd/internal/models"
)

// Total policy: the list-query count is the single source of truth. The map
// query is capped for safety and the precomputed aggregate lags behind
// writes, so bucket sums can diverge from the authoritative count; the
// reconciler corrects bucket counts to sum exactly to the total instead of
// letting the map and the list report different numbers for the same
// filter set.

// ReconcileBuckets scales bucket counts to sum to total using
// largest-remainder apportionment, preserving the relative size of each
// cluster. It reports whether any correction was applied so callers can log
// the drift. Buckets whose corrected count reaches zero are dropped.
func ReconcileBuckets(buckets []models.GeoBucket, total int) ([]models.GeoBucket, bool) {
	sum := 0
	for _, b := range buckets {
		sum += b.Count
	}
	if sum == total || sum == 0 {
		return buckets, false
	}

	type share struct {
		idx       int
		floor     int
		remainder float64
	}
	shares := make([]share, len(buckets))
	floorSum := 0
	for i, b := range buckets {
		exact := float64(b.Count) * float64(total) / float64(sum)
		fl := int(exact)
		shares[i] = share{idx: i, floor: fl, remainder: exact - float64(fl)}
		floorSum += fl
	}

	// Hand the leftover units to the largest remainders; ties break on the
	// original (count-descending) order so the output stays deterministic.
	leftover := total - floorSum
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].remainder > shares[j].remainder
	})
	for i := 0; i < len(shares) && leftover > 0; i++ {
		shares[i].floor++
		leftover--
	}

	corrected := make([]models.GeoBucket, 0, len(buckets))
	counts := make([]int, len(buckets))
	for _, sh := range shares {
		counts[sh.idx] = sh.floor
	}
	for i, b := range buckets {
		if counts[i] == 0 {
			continue
		}
		b.Count = counts[i]
		corrected = append(corrected, b)
	}

	sort.SliceStable(corrected, func(i, j int) bool {
		if corrected[i].Count != corrected[j].Count {
			return corrected[i].Count > corrected[j].Count
		}
		return corrected[i].ID < corrected[j].ID
	})
	return corrected, true
}
