package sequence

/******************************************************************************
This package turns medical-service (MBS) claim histories into the
per-patient token sequences and side features consumed by the model
training step.
Contents:
1. sequence.go - service event ingest, gap buckets, sequence assembly
2. writer.go   - feature table CSV output
******************************************************************************/

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"

	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
	"github.com/mbspbs10pc/dcohort-app/log"
)

// DefaultMinLength is the threshold below which a patient's history is too
// short to be a sequence. A patient survives only with strictly more
// in-window events than this.
const DefaultMinLength = 10

const (
	colPIN      = "PIN"
	colItem     = "ITEM"
	colDate     = "DOS"
	colRegion   = "PINSTATE"
	colSex      = "SEX"
	colYOB      = "YOB"
	colWinStart = "START_DATE"
	colWinEnd   = "END_DATE"
)

var serviceFields = []string{colPIN, colItem, colDate, colRegion}
var lookupFields = []string{colPIN, colSex, colYOB, colWinStart, colWinEnd}

// PatientInfo is one row of the patient lookup table: demographics plus
// the patient-specific observation window.
type PatientInfo struct {
	Sex         string
	YearOfBirth int
	Start, End  time.Time
}

// A ServiceEvent is one medical-service claim row, already joined against
// the broad-category mapping.
type ServiceEvent struct {
	PatientID string
	Item      string
	Category  string
	Region    string
	Date      time.Time
}

// A Row is the per-patient output of the extractor: the alternating
// token/gap sequence and the side features.
type Row struct {
	PatientID  string
	Seq        string
	AvgAge     float64
	LastRegion string
	Sex        string
}

// Options tune one extraction run.
type Options struct {
	// MinLength overrides DefaultMinLength when positive.
	MinLength int

	// BroadTokens emits broad-service-category codes instead of raw item
	// codes, shrinking the token vocabulary. Items without a mapped
	// category fall back to the raw code.
	BroadTokens bool
}

// GapBucket discretizes the day count between two consecutive services:
//
//	[same day - 2 weeks]  0
//	(2 weeks  - 1 month]  1
//	(1 month  - 3 months] 2
//	(3 months - 1 year]   3
//	more than 1 year      4
//
// using the business month (30 days) and year (360 days) durations.
// A negative day count means the events were not sorted, which signals
// data corruption upstream.
func GapBucket(days int) (string, error) {
	switch {
	case days < 0:
		return "", &dcerrors.DataFormatError{
			Err: errors.Errorf("negative timespan %d days", days), Msg: "events out of order"}
	case days <= 14:
		return "0", nil
	case days <= 30:
		return "1", nil
	case days <= 90:
		return "2", nil
	case days <= 360:
		return "3", nil
	default:
		return "4", nil
	}
}

// LoadPatientLookup reads the patient lookup table from disk.
func LoadPatientLookup(path string) (map[string]PatientInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open patient lookup"}
	}
	defer f.Close()

	return ReadPatientLookup(f, path)
}

// ReadPatientLookup parses the lookup table (PIN, SEX, YOB, START_DATE,
// END_DATE). Dates accept both the claims notation and ISO form.
func ReadPatientLookup(r io.Reader, file string) (map[string]PatientInfo, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read patient lookup"}
	}
	if err := validate(df, lookupFields); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "patient lookup is not valid"}
	}

	records := df.Select(lookupFields).Records()
	idx := columnIndex(records[0])

	out := make(map[string]PatientInfo, len(records)-1)
	for _, row := range records[1:] {
		yob, err := strconv.Atoi(strings.TrimSpace(row[idx[colYOB]]))
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad year of birth"}
		}
		start, err := parseWindowDate(row[idx[colWinStart]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad window start date"}
		}
		end, err := parseWindowDate(row[idx[colWinEnd]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad window end date"}
		}

		out[row[idx[colPIN]]] = PatientInfo{
			Sex:         strings.TrimSpace(row[idx[colSex]]),
			YearOfBirth: yob,
			Start:       start,
			End:         end,
		}
	}
	return out, nil
}

// LoadServiceEvents reads one service-claim file from disk. See
// ReadServiceEvents.
func LoadServiceEvents(path string, cohort map[string]struct{}, exclude map[string]struct{}, categories map[string]string) ([]ServiceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open service claims file"}
	}
	defer f.Close()

	return ReadServiceEvents(f, path, cohort, exclude, categories)
}

// ReadServiceEvents parses one service-claim file, keeping only rows of
// cohort patients and dropping rows whose item is in the exclusion list
// (the pregnancy items, when enabled). The broad category is joined by
// item code. Row order is preserved.
func ReadServiceEvents(r io.Reader, file string, cohort map[string]struct{}, exclude map[string]struct{}, categories map[string]string) ([]ServiceEvent, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read service claims"}
	}
	if err := validate(df, serviceFields); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "service claims file is not valid"}
	}

	records := df.Select(serviceFields).Records()
	idx := columnIndex(records[0])

	var events []ServiceEvent
	for _, row := range records[1:] {
		pin := row[idx[colPIN]]
		if _, ok := cohort[pin]; !ok {
			continue
		}
		item := strings.TrimSpace(row[idx[colItem]])
		if _, excluded := exclude[item]; excluded {
			continue
		}

		dt, err := claims.ParseClaimDate(row[idx[colDate]])
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad service date"}
		}

		events = append(events, ServiceEvent{
			PatientID: pin,
			Item:      item,
			Category:  categories[item],
			Region:    strings.TrimSpace(row[idx[colRegion]]),
			Date:      dt,
		})
	}

	log.Pipeline.Infof("%s: %d service events kept", file, len(events))
	return events, nil
}

// Extract groups the merged service events by patient, sorts each history
// chronologically (stable, so tied dates keep file order), clips it to the
// patient's observation window and emits one Row per patient with a
// non-trivial history. Patients with too few in-window events, or missing
// from the lookup table, are dropped entirely rather than padded.
func Extract(events []ServiceEvent, lookup map[string]PatientInfo, opts Options) ([]Row, error) {
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	byPatient := make(map[string][]ServiceEvent)
	for _, ev := range events {
		byPatient[ev.PatientID] = append(byPatient[ev.PatientID], ev)
	}

	pins := make([]string, 0, len(byPatient))
	for pin := range byPatient {
		pins = append(pins, pin)
	}
	sort.Strings(pins)

	var rows []Row
	for _, pin := range pins {
		info, ok := lookup[pin]
		if !ok {
			log.Pipeline.Warnf("patient %s has no lookup entry; dropped", pin)
			continue
		}

		history := byPatient[pin]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Date.Before(history[j].Date)
		})
		history = clipWindow(history, info.Start, info.End)

		if len(history) <= minLength {
			continue
		}

		seq, err := buildSequence(history, opts.BroadTokens)
		if err != nil {
			return nil, err
		}

		rows = append(rows, Row{
			PatientID:  pin,
			Seq:        seq,
			AvgAge:     meanEventYear(history) - float64(info.YearOfBirth),
			LastRegion: history[len(history)-1].Region,
			Sex:        info.Sex,
		})
	}

	log.Pipeline.Infof("extracted %d sequences from %d patients", len(rows), len(byPatient))
	return rows, nil
}

// buildSequence interleaves service tokens with gap buckets, always ending
// on a token: tok gap tok gap ... tok.
func buildSequence(history []ServiceEvent, broad bool) (string, error) {
	parts := make([]string, 0, 2*len(history)-1)
	for i, ev := range history {
		if i > 0 {
			days := int(ev.Date.Sub(history[i-1].Date).Hours() / 24)
			bucket, err := GapBucket(days)
			if err != nil {
				return "", err
			}
			parts = append(parts, bucket)
		}
		parts = append(parts, token(ev, broad))
	}
	return strings.Join(parts, " "), nil
}

func token(ev ServiceEvent, broad bool) string {
	if broad && ev.Category != "" {
		return ev.Category
	}
	return ev.Item
}

func clipWindow(history []ServiceEvent, start, end time.Time) []ServiceEvent {
	clipped := history[:0:0]
	for _, ev := range history {
		if ev.Date.Before(start) || ev.Date.After(end) {
			continue
		}
		clipped = append(clipped, ev)
	}
	return clipped
}

// meanEventYear is the mean calendar year of the in-window events; minus
// the year of birth it approximates the age during the window.
func meanEventYear(history []ServiceEvent) float64 {
	sum := 0
	for _, ev := range history {
		sum += ev.Date.Year()
	}
	return float64(sum) / float64(len(history))
}

func parseWindowDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := claims.ParseClaimDate(s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected window date %q", s)
	}
	return t, nil
}

func toDataFrame(r io.Reader) (dataframe.DataFrame, error) {
	reader := utfbom.SkipOnly(r)
	df := dataframe.ReadCSV(reader, dataframe.HasHeader(true), dataframe.DetectTypes(false))
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
