package features

import (
	"fmt"
	"sort"

	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// BucketTable maps a raw ordinal onto the coarser bucket the model was trained with.
// Tables are built once and never modified.
type BucketTable struct {
	field   string
	buckets map[int64]int64
}

func newBucketTable(field string, buckets map[int64]int64) BucketTable {
	return BucketTable{field: field, buckets: buckets}
}

var (
	numCompaniesWorkedBuckets = newBucketTable("NumCompaniesWorked", map[int64]int64{
		0: 0, 1: 1, 2: 3, 3: 3, 4: 3, 5: 6, 6: 6, 7: 6, 8: 9, 9: 9,
	})
	percentSalaryHikeBuckets = newBucketTable("PercentSalaryHike", map[int64]int64{
		11: 12, 12: 14, 13: 14, 14: 15, 15: 16,
		16: 18, 17: 18, 18: 18, 19: 18, 20: 21,
		21: 21, 22: 21, 23: 24, 24: 24, 25: 24,
	})
)

// Field is the column the table rewrites in place.
func (t BucketTable) Field() string {
	return t.field
}

// Lookup returns the bucket for value, or an UnmappedCategory error outside the table's domain.
func (t BucketTable) Lookup(value int64) (int64, error) {
	bucket, ok := t.buckets[value]
	if !ok {
		return 0, utils.NewFieldError(utils.KindUnmappedCategory, "features.bucket", t.field,
			fmt.Sprintf("value %d is outside the bucket table domain %s", value, t.domain()))
	}
	return bucket, nil
}

// Domain returns the accepted inputs in ascending order.
func (t BucketTable) Domain() []int64 {
	keys := make([]int64, 0, len(t.buckets))
	for k := range t.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (t BucketTable) domain() string {
	keys := t.Domain()
	if len(keys) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d..%d]", keys[0], keys[len(keys)-1])
}

// NumCompaniesWorkedBuckets exposes the NumCompaniesWorked table.
func NumCompaniesWorkedBuckets() BucketTable { return numCompaniesWorkedBuckets }

// PercentSalaryHikeBuckets exposes the PercentSalaryHike table.
func PercentSalaryHikeBuckets() BucketTable { return percentSalaryHikeBuckets }
