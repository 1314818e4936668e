package claims

/******************************************************************************
This package is responsible for data wrangling and ingesting the yearly
pharmaceutical (PBS) claims files.
Contents:
1. claims.go - yearly claims table loading and date handling
2. codes.go  - reference table loaders (drug codes, co-payments, ...)
3. scanner.go - parallel per-patient scan of a loaded table
******************************************************************************/

import (
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"

	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
)

const (
	colItem         = "ITM_CD"
	colPatient      = "PTNT_ID"
	colSupplyDate   = "SPPLY_DT"
	colContribution = "PTNT_CNTRBTN_AMT"
	colBenefit      = "BNFT_AMT"
)

// Fields that must be present in a yearly claims file
var requiredFields = []string{
	colItem, colPatient, colSupplyDate, colContribution, colBenefit,
}

// claimDateLayout matches the day-month-year notation used across the
// claims extracts, e.g. 01JAN2012. Months arrive uppercased.
const claimDateLayout = "02Jan2006"

// A ClaimEvent is one prescription row of a yearly claims file. Immutable
// once loaded.
type ClaimEvent struct {
	PatientID    string
	ItemCode     string
	SupplyDate   time.Time
	Contribution float64
	Benefit      float64
}

// A Table holds one yearly claims file restricted to the diabetes-related
// item codes, keyed by patient. Built once, read-only afterward; safe to
// share across scanner shards without synchronization.
type Table struct {
	Year int
	File string

	byPatient map[string][]ClaimEvent
	patients  []string
}

// PatientIDs returns the sorted unique patient identifiers of the table.
// The returned slice must not be modified.
func (t *Table) PatientIDs() []string {
	return t.patients
}

// Events returns the claim events of one patient in original file order.
func (t *Table) Events(patientID string) []ClaimEvent {
	return t.byPatient[patientID]
}

// NumEvents reports the total number of retained rows.
func (t *Table) NumEvents() int {
	n := 0
	for _, evs := range t.byPatient {
		n += len(evs)
	}
	return n
}

// ParseClaimDate parses the 01JAN2012-style dates of the claims extracts.
func ParseClaimDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != 9 {
		return time.Time{}, errors.Errorf("unexpected date %q", s)
	}

	// Normalize the month casing so the fixed layout applies
	mon := s[2:5]
	normalized := s[:2] + strings.ToUpper(mon[:1]) + strings.ToLower(mon[1:]) + s[5:]

	t, err := time.Parse(claimDateLayout, normalized)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "unexpected date %q", s)
	}
	return t, nil
}

// FormatClaimDate renders a date back into the uppercased claims notation.
func FormatClaimDate(t time.Time) string {
	return strings.ToUpper(t.Format(claimDateLayout))
}

// LoadTable reads one yearly claims file from disk. See ReadTable.
func LoadTable(path string, year int, drugCodes map[string]struct{}) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open claims file"}
	}
	defer f.Close()

	return ReadTable(f, path, year, drugCodes)
}

// ReadTable builds a Table from one yearly claims file, retaining only the
// rows whose item code (left-zero-padded to six characters) is in
// drugCodes, and only the columns the cohort rules consume. A missing
// required column or an unparsable date is fatal.
func ReadTable(r io.Reader, file string, year int, drugCodes map[string]struct{}) (*Table, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read claims file"}
	}
	if err := validate(df, requiredFields); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "claims file is not valid"}
	}

	records := df.Select(requiredFields).Records()
	header, rows := records[0], records[1:]
	idx := columnIndex(header)

	t := &Table{Year: year, File: file, byPatient: make(map[string][]ClaimEvent)}
	for _, row := range rows {
		code := PadItemCode(row[idx[colItem]])
		if _, ok := drugCodes[code]; !ok {
			continue
		}

		dt, err := ParseClaimDate(row[idx[colSupplyDate]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad supply date"}
		}
		contribution, err := parseAmount(row[idx[colContribution]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad contribution amount"}
		}
		benefit, err := parseAmount(row[idx[colBenefit]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad benefit amount"}
		}

		pin := row[idx[colPatient]]
		t.byPatient[pin] = append(t.byPatient[pin], ClaimEvent{
			PatientID:    pin,
			ItemCode:     code,
			SupplyDate:   dt,
			Contribution: contribution,
			Benefit:      benefit,
		})
	}

	t.patients = make([]string, 0, len(t.byPatient))
	for pin := range t.byPatient {
		t.patients = append(t.patients, pin)
	}
	sort.Strings(t.patients)

	return t, nil
}

// LoadClaimantIDs reads the full patient-ID column of a yearly claims
// file, without any item-code filtering. The negative cohort rule needs
// every claimant of a year, not just the diabetes claimants.
func LoadClaimantIDs(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open claims file"}
	}
	defer f.Close()

	return ReadClaimantIDs(f, path)
}

// ReadClaimantIDs is the io.Reader form of LoadClaimantIDs.
func ReadClaimantIDs(r io.Reader, file string) (map[string]struct{}, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read claims file"}
	}
	if err := validate(df, []string{colPatient}); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "claims file is not valid"}
	}

	ids := make(map[string]struct{})
	for _, pin := range df.Col(colPatient).Records() {
		ids[pin] = struct{}{}
	}
	return ids, nil
}

func toDataFrame(r io.Reader) (dataframe.DataFrame, error) {
	// Trim the Byte Order Marker if it's present
	// See: https://github.com/golang/go/issues/33887
	reader := utfbom.SkipOnly(r)

	df := dataframe.ReadCSV(reader, dataframe.HasHeader(true), dataframe.DetectTypes(false))
	// Any error from this read operation is written to the Err field

	return df, df.Err
}

func validate(df dataframe.DataFrame, required []string) error {
	fields := df.Names()
	m := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		m[field] = struct{}{}
	}

	for _, r := range required {
		if _, ok := m[r]; !ok {
			return errors.Errorf("required field '%s' not found", r)
		}
	}

	return nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
