package cohort_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
	"github.com/mbspbs10pc/dcohort-app/dcohort/cohort"
)

const (
	met   = "08607B" // metformin
	other = "02178K" // non-metformin diabetes drug
)

var metItems = set(met)

func TestMetforminOnlyScenario(t *testing.T) {
	// Patient P: (metformin, day 1), (metformin, day 5), concessional, no
	// prior years -> POSITIVE and METFORMIN_ONLY, recorded date = day 1
	target := claims.ScanResult{
		"P": record([]string{met, met}, []time.Time{day(2012, 1), day(2012, 5)}),
	}
	positives := map[string]time.Time{"P": day(2012, 1)}

	metOnly, metThenOther := cohort.SplitMetformin(target, positives, metItems)

	require.Contains(t, metOnly, "P")
	assert.True(t, metOnly["P"].Equal(day(2012, 1)))
	assert.Empty(t, metThenOther)
}

func TestNonMetforminFirstScenario(t *testing.T) {
	// Patient Q: (non-metformin, day 1), (metformin, day 10) -> POSITIVE
	// but in neither metformin subtype. The first sorted record being
	// non-metformin leaves the temporal precedence ambiguous and the rule
	// deliberately assigns no subtype.
	target := claims.ScanResult{
		"Q": record([]string{other, met}, []time.Time{day(2012, 1), day(2012, 10)}),
	}
	positives := map[string]time.Time{"Q": day(2012, 1)}

	metOnly, metThenOther := cohort.SplitMetformin(target, positives, metItems)

	assert.Empty(t, metOnly)
	assert.Empty(t, metThenOther)

	members := cohort.Assemble(set("Q"), positives, metOnly, metThenOther, nil)
	require.Len(t, members, 1)
	assert.Equal(t, cohort.LabelPositive, members[0].Label)
}

func TestMetforminThenOtherScenario(t *testing.T) {
	// Patient R: (metformin, day 1), (non-metformin, day 20) -> POSITIVE
	// and METFORMIN_THEN_OTHER, recorded date = day 1 (min across the
	// entire record)
	target := claims.ScanResult{
		"R": record([]string{met, other}, []time.Time{day(2012, 1), day(2012, 20)}),
	}
	positives := map[string]time.Time{"R": day(2012, 1)}

	metOnly, metThenOther := cohort.SplitMetformin(target, positives, metItems)

	assert.Empty(t, metOnly)
	require.Contains(t, metThenOther, "R")
	assert.True(t, metThenOther["R"].Equal(day(2012, 1)))
}

func TestSplitMetforminUnsortedInput(t *testing.T) {
	// File order has the later non-metformin row first; the rule must sort
	// by date before looking at positions
	target := claims.ScanResult{
		"S": record([]string{other, met}, []time.Time{day(2012, 20), day(2012, 1)}),
	}
	positives := map[string]time.Time{"S": day(2012, 1)}

	_, metThenOther := cohort.SplitMetformin(target, positives, metItems)
	assert.Contains(t, metThenOther, "S")
}

func TestSplitMetforminTiedDatesKeepFileOrder(t *testing.T) {
	// Same supply date: the stable sort keeps original row order, so the
	// outcome depends only on file order
	sameDay := []time.Time{day(2012, 5), day(2012, 5)}

	metFirst := claims.ScanResult{"T": record([]string{met, other}, sameDay)}
	_, metThenOther := cohort.SplitMetformin(metFirst, map[string]time.Time{"T": day(2012, 5)}, metItems)
	assert.Contains(t, metThenOther, "T")

	otherFirst := claims.ScanResult{"T": record([]string{other, met}, sameDay)}
	metOnly, metThenOther := cohort.SplitMetformin(otherFirst, map[string]time.Time{"T": day(2012, 5)}, metItems)
	assert.Empty(t, metOnly)
	assert.Empty(t, metThenOther)
}

func TestSplitMetforminDisjointSubtypes(t *testing.T) {
	target := claims.ScanResult{
		"A": record([]string{met}, []time.Time{day(2012, 1)}),
		"B": record([]string{met, other}, []time.Time{day(2012, 1), day(2012, 2)}),
		"C": record([]string{other}, []time.Time{day(2012, 1)}),
	}
	positives := map[string]time.Time{"A": day(2012, 1), "B": day(2012, 1), "C": day(2012, 1)}

	metOnly, metThenOther := cohort.SplitMetformin(target, positives, metItems)

	for pin := range metOnly {
		assert.NotContains(t, metThenOther, pin)
	}
	assert.Contains(t, metOnly, "A")
	assert.Contains(t, metThenOther, "B")
}
