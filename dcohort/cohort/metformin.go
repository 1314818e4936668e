package cohort

import (
	"sort"
	"time"

	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
)

// SplitMetformin classifies the positive cohort of the target year into
// the metformin subtypes.
//
// A patient is metformin-only when every prescribed item of the target
// year belongs to the metformin reference set. A patient is
// metformin-then-other when at least one item is metformin and, after a
// stable sort by supply date, the first non-metformin item does not sit at
// position 0 (a metformin prescription chronologically precedes the switch
// or add-on). A patient whose first sorted item is non-metformin lands in
// neither subtype and stays plain positive; the original rule leaves this
// gap open and it is preserved here on purpose.
//
// Both returned maps carry the minimum supply date across the patient's
// entire target-year record.
func SplitMetformin(target claims.ScanResult, positives map[string]time.Time, metItems map[string]struct{}) (metOnly, metThenOther map[string]time.Time) {
	metOnly = make(map[string]time.Time)
	metThenOther = make(map[string]time.Time)

	for pin, firstSupply := range positives {
		rec, ok := target[pin]
		if !ok {
			continue
		}

		type supply struct {
			item string
			date time.Time
		}
		supplies := make([]supply, len(rec.ItemCodes))
		for i := range rec.ItemCodes {
			supplies[i] = supply{item: rec.ItemCodes[i], date: rec.SupplyDates[i]}
		}
		// Ties between equal dates must keep original file order.
		sort.SliceStable(supplies, func(i, j int) bool {
			return supplies[i].date.Before(supplies[j].date)
		})

		hasMet := false
		firstOther := -1
		for i, s := range supplies {
			if _, met := metItems[s.item]; met {
				hasMet = true
			} else if firstOther < 0 {
				firstOther = i
			}
		}

		switch {
		case firstOther < 0:
			metOnly[pin] = firstSupply
		case hasMet && firstOther > 0:
			metThenOther[pin] = firstSupply
		}
	}

	return metOnly, metThenOther
}
