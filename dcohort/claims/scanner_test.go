package claims

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
)

func day(d int) time.Time {
	return time.Date(2012, time.January, d, 0, 0, 0, 0, time.UTC)
}

func testTable(t *testing.T, patients int) *Table {
	t.Helper()

	table := &Table{Year: 2012, File: "PBS_SAMPLE_10PCT_2012.csv", byPatient: make(map[string][]ClaimEvent)}
	for i := 0; i < patients; i++ {
		pin := fmt.Sprintf("P%03d", i)
		table.byPatient[pin] = []ClaimEvent{
			{PatientID: pin, ItemCode: "08607B", SupplyDate: day(1 + i%20), Contribution: 5, Benefit: 10},
			{PatientID: pin, ItemCode: "02178K", SupplyDate: day(2 + i%20), Contribution: 1, Benefit: 1},
		}
		table.patients = append(table.patients, pin)
	}
	return table
}

func TestScanIdempotentAcrossShardCounts(t *testing.T) {
	table := testTable(t, 17)

	baseline, err := Scan(table, ScanOptions{Parallelism: 1})
	require.NoError(t, err)
	require.Len(t, baseline, 17)

	for _, n := range []int{2, 3, 5, 17, 100} {
		t.Run(fmt.Sprintf("parallelism-%d", n), func(t *testing.T) {
			result, err := Scan(table, ScanOptions{Parallelism: n})
			require.NoError(t, err)
			assert.Equal(t, baseline, result)
		})
	}
}

func TestScanCopaymentFilter(t *testing.T) {
	table := testTable(t, 3)
	threshold := 10.0

	result, err := Scan(table, ScanOptions{Parallelism: 2, Copayment: &threshold})
	require.NoError(t, err)

	// The 1+1 dollar rows fall below the threshold; only the 5+10 rows stay
	require.Len(t, result, 3)
	for _, rec := range result {
		assert.Equal(t, []string{"08607B"}, rec.ItemCodes)
		assert.Len(t, rec.SupplyDates, 1)
	}
}

func TestScanOmitsPatientsWithNoQualifyingRows(t *testing.T) {
	table := testTable(t, 2)
	// A threshold no row can reach removes everyone; absence is not an error
	threshold := 1000.0

	result, err := Scan(table, ScanOptions{Parallelism: 2, Copayment: &threshold})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NotNil(t, result)
}

func TestScanEmptyTable(t *testing.T) {
	table := &Table{Year: 2012, File: "empty.csv", byPatient: map[string][]ClaimEvent{}}

	result, err := Scan(table, ScanOptions{Parallelism: 8})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestScanPreservesFileOrderWithinPatient(t *testing.T) {
	table := &Table{Year: 2012, File: "f.csv", byPatient: map[string][]ClaimEvent{
		"P001": {
			{PatientID: "P001", ItemCode: "08607B", SupplyDate: day(5)},
			{PatientID: "P001", ItemCode: "02178K", SupplyDate: day(1)},
		},
	}, patients: []string{"P001"}}

	result, err := Scan(table, ScanOptions{Parallelism: 1})
	require.NoError(t, err)

	rec := result["P001"]
	require.NotNil(t, rec)
	// Scan does not reorder; sorting is the subtype rule's concern
	assert.Equal(t, []string{"08607B", "02178K"}, rec.ItemCodes)
	assert.True(t, rec.SupplyDates[0].After(rec.SupplyDates[1]))
}

func TestScanNegativeAmountFailsWholeScan(t *testing.T) {
	table := testTable(t, 6)
	table.byPatient["P004"] = []ClaimEvent{
		{PatientID: "P004", ItemCode: "08607B", SupplyDate: day(3), Contribution: -20, Benefit: 5},
	}

	result, err := Scan(table, ScanOptions{Parallelism: 3})
	assert.Nil(t, result)

	var wfe *dcerrors.WorkerFailureError
	require.True(t, errors.As(err, &wfe))
	assert.Equal(t, "PBS_SAMPLE_10PCT_2012.csv", wfe.File)
}

func TestSplitShards(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}

	shards := splitShards(ids, 3)
	require.Len(t, shards, 3)
	assert.Equal(t, []string{"a", "b", "c"}, shards[0])
	assert.Equal(t, []string{"d", "e"}, shards[1])
	assert.Equal(t, []string{"f", "g"}, shards[2])

	// Reassembling the shards gives back the original partition
	var all []string
	for _, s := range shards {
		all = append(all, s...)
	}
	assert.Equal(t, ids, all)
}
