package claims

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
	"github.com/mbspbs10pc/dcohort-app/log"
)

// progressEvery controls how often a shard reports scan progress.
const progressEvery = 500

// A PatientRecord collects the qualifying prescription events of one
// patient within one yearly claims table, in original file order.
type PatientRecord struct {
	SupplyDates []time.Time
	ItemCodes   []string
}

// ScanResult maps patient IDs to their qualifying events for one year.
// Patients with zero qualifying rows are absent: absence means "not
// prescribed this drug class this year", not an error.
type ScanResult map[string]*PatientRecord

// ScanOptions tune one parallel scan of a yearly table.
type ScanOptions struct {
	// Parallelism is the target number of shards. Values outside
	// [1, number of patients] are clamped.
	Parallelism int

	// Copayment, when non-nil, drops rows whose contribution + benefit is
	// below the year's threshold. The source data never identifies the
	// beneficiary category per row, so the filter applies uniformly even
	// though the minimum-cost rule only concerns General Beneficiaries.
	Copayment *float64
}

// Scan partitions the table's sorted unique patient IDs into contiguous
// near-equal shards and scans them concurrently. Shards operate on
// disjoint patients, so the merged result can never conflict. Any shard
// failure fails the whole file's scan; no partial result is returned.
func Scan(t *Table, opts ScanOptions) (ScanResult, error) {
	ids := t.PatientIDs()

	n := opts.Parallelism
	if n < 1 {
		n = 1
	}
	if n > len(ids) {
		n = len(ids)
	}
	if len(ids) == 0 {
		return ScanResult{}, nil
	}

	shards := splitShards(ids, n)
	results := make([]ScanResult, len(shards))
	failures := make([]error, len(shards))

	var wg sync.WaitGroup
	for i := range shards {
		wg.Add(1)
		go func(shard int) {
			defer wg.Done()
			results[shard], failures[shard] = scanShard(t, shards[shard], shard, opts.Copayment)
		}(i)
	}
	wg.Wait()

	// Single synchronization barrier: merge only after every worker is done.
	merged := make(ScanResult)
	for i := range shards {
		if failures[i] != nil {
			return nil, &dcerrors.WorkerFailureError{Err: failures[i], File: t.File, Shard: i}
		}
		for pin, rec := range results[i] {
			merged[pin] = rec
		}
	}
	return merged, nil
}

// splitShards partitions ids into n contiguous slices whose sizes differ
// by at most one.
func splitShards(ids []string, n int) [][]string {
	shards := make([][]string, 0, n)
	base, extra := len(ids)/n, len(ids)%n

	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		shards = append(shards, ids[start:start+size])
		start += size
	}
	return shards
}

func scanShard(t *Table, shard []string, shardNum int, copayment *float64) (ScanResult, error) {
	out := make(ScanResult)

	for k, pin := range shard {
		if k%progressEvery == 0 {
			log.Worker.Infof("%s shard %d: %d/%d patients", t.File, shardNum, k, len(shard))
		}

		rec := &PatientRecord{}
		for _, ev := range t.Events(pin) {
			total := ev.Contribution + ev.Benefit
			if total < 0 {
				return nil, errors.Errorf("negative claim amount %.2f for patient %s", total, pin)
			}
			if copayment != nil && total < *copayment {
				continue
			}
			rec.SupplyDates = append(rec.SupplyDates, ev.SupplyDate)
			rec.ItemCodes = append(rec.ItemCodes, ev.ItemCode)
		}

		if len(rec.ItemCodes) > 0 {
			out[pin] = rec
		}
	}

	log.Worker.Infof("%s shard %d: done, %d patients kept", t.File, shardNum, len(out))
	return out, nil
}
