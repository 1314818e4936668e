package cohort

/******************************************************************************
This package applies the temporal set-algebra rules that split the observed
population into the labeled cohorts consumed by the sequence extractor and
the downstream model trainer.
Contents:
1. cohort.go    - labels, positive rule, negative rule, assembly
2. metformin.go - metformin-only / metformin-then-other split
3. writer.go    - labeled patient list CSV output
******************************************************************************/

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
	"github.com/mbspbs10pc/dcohort-app/log"
)

// Claims extracts are available for these years only.
const (
	MinYear = 2008
	MaxYear = 2014
)

// A Label classifies one patient of the observed population. Every patient
// carries exactly one label.
type Label int

const (
	LabelExcluded Label = iota
	LabelPositive
	LabelNegative
	LabelMetforminOnly
	LabelMetforminThenOther
)

func (l Label) String() string {
	switch l {
	case LabelPositive:
		return "POSITIVE"
	case LabelNegative:
		return "NEGATIVE"
	case LabelMetforminOnly:
		return "METFORMIN_ONLY"
	case LabelMetforminThenOther:
		return "METFORMIN_THEN_OTHER"
	default:
		return "EXCLUDED"
	}
}

// A Member is one labeled patient. FirstSupply is the earliest qualifying
// supply date and is zero for negative and excluded patients.
type Member struct {
	PatientID   string
	Label       Label
	FirstSupply time.Time
}

// ValidateTargetYear rejects target years outside the supported extracts.
func ValidateTargetYear(year int) error {
	if year < MinYear || year > MaxYear {
		return &dcerrors.ConfigurationError{
			Err: errors.Errorf("target year %d outside [%d, %d]", year, MinYear, MaxYear),
			Msg: "invalid target year",
		}
	}
	return nil
}

// FindPositives returns the patients that started taking diabetes drugs in
// the target year: concessional claimants of the target year with no
// concessional diabetes claim in any year from MinYear up to the year
// before. Prior years are scanned backward in strict descending order,
// each independently intersected with the concessional set. The mapped
// date is the earliest supply date within the target year.
//
// An empty concessional set yields an empty cohort; that is valid.
func FindPositives(byYear map[int]claims.ScanResult, concessionals map[string]struct{}, targetYear int) (map[string]time.Time, error) {
	if err := ValidateTargetYear(targetYear); err != nil {
		return nil, err
	}
	target, ok := byYear[targetYear]
	if !ok {
		return nil, &dcerrors.ConfigurationError{
			Err: errors.Errorf("no claims scanned for year %d", targetYear),
			Msg: "target year not loaded",
		}
	}

	positives := make(map[string]struct{}, len(target))
	for pin := range target {
		if _, c := concessionals[pin]; c {
			positives[pin] = struct{}{}
		}
	}

	for year := targetYear - 1; year >= MinYear; year-- {
		prior, ok := byYear[year]
		if !ok {
			return nil, &dcerrors.ConfigurationError{
				Err: errors.Errorf("no claims scanned for year %d", year),
				Msg: "prior year not loaded",
			}
		}
		for pin := range positives {
			if _, seen := prior[pin]; !seen {
				continue
			}
			// Concessional and prescribed in an earlier year: not a starter.
			if _, c := concessionals[pin]; c {
				delete(positives, pin)
			}
		}
	}

	out := make(map[string]time.Time, len(positives))
	for pin := range positives {
		out[pin] = earliest(target[pin].SupplyDates)
	}
	log.Pipeline.Infof("positive cohort for %d: %d patients", targetYear, len(out))
	return out, nil
}

// FindNegatives returns the patients never prescribed diabetes drugs in
// any observed year. The "diabetic ever" set accumulates across every
// year's diabetes claimants first; each year's full claimant population is
// then intersected with the concessional set and the accumulated set is
// subtracted. Membership only ever grows.
func FindNegatives(claimantsByYear map[int]map[string]struct{}, byYear map[int]claims.ScanResult, concessionals map[string]struct{}) map[string]struct{} {
	diabeticOverall := make(map[string]struct{})
	for _, scanned := range byYear {
		for pin := range scanned {
			if _, c := concessionals[pin]; c {
				diabeticOverall[pin] = struct{}{}
			}
		}
	}

	negatives := make(map[string]struct{})
	for _, year := range sortedYears(claimantsByYear) {
		for pin := range claimantsByYear[year] {
			if _, c := concessionals[pin]; !c {
				continue
			}
			if _, d := diabeticOverall[pin]; d {
				continue
			}
			negatives[pin] = struct{}{}
		}
	}
	log.Pipeline.Infof("negative cohort: %d patients", len(negatives))
	return negatives
}

// Assemble folds the rule outputs into one labeled member per patient of
// the observed population. The metformin subtypes partition the positive
// cohort; whoever the subtype rule left unassigned stays plain positive.
// Patients matching no rule are excluded. Members come back sorted by
// patient ID.
func Assemble(population map[string]struct{}, positives, metOnly, metThenOther map[string]time.Time, negatives map[string]struct{}) []Member {
	members := make([]Member, 0, len(population))

	for pin := range population {
		m := Member{PatientID: pin, Label: LabelExcluded}
		if dt, ok := metOnly[pin]; ok {
			m.Label, m.FirstSupply = LabelMetforminOnly, dt
		} else if dt, ok := metThenOther[pin]; ok {
			m.Label, m.FirstSupply = LabelMetforminThenOther, dt
		} else if dt, ok := positives[pin]; ok {
			m.Label, m.FirstSupply = LabelPositive, dt
		} else if _, ok := negatives[pin]; ok {
			m.Label = LabelNegative
		}
		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].PatientID < members[j].PatientID
	})
	return members
}

func earliest(dates []time.Time) time.Time {
	min := dates[0]
	for _, d := range dates[1:] {
		if d.Before(min) {
			min = d
		}
	}
	return min
}

func sortedYears(m map[int]map[string]struct{}) []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
