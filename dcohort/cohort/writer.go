package cohort

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
)

// WriteCSV serializes labeled members as a PTNT_ID,LABEL,SPPLY_DT table.
// Negative and excluded members get an empty date field.
func WriteCSV(w io.Writer, members []Member) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"PTNT_ID", "LABEL", "SPPLY_DT"}); err != nil {
		return errors.Wrap(err, "failed to write cohort header")
	}

	for _, m := range members {
		dt := ""
		if !m.FirstSupply.IsZero() {
			dt = claims.FormatClaimDate(m.FirstSupply)
		}
		if err := cw.Write([]string{m.PatientID, m.Label.String(), dt}); err != nil {
			return errors.Wrapf(err, "failed to write cohort row for %s", m.PatientID)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush cohort output")
}

// SaveCSV writes the labeled members to path.
func SaveCSV(path string, members []Member) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", path)
	}
	defer f.Close()

	return WriteCSV(f, members)
}

// ReadCohortIDs loads the patient IDs of a previously written cohort CSV,
// optionally restricted to a set of labels. An empty labels list keeps
// every patient in the file.
func ReadCohortIDs(r io.Reader, labels ...Label) (map[string]struct{}, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cohort file")
	}
	if len(rows) == 0 {
		return map[string]struct{}{}, nil
	}

	wanted := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		wanted[l.String()] = struct{}{}
	}

	ids := make(map[string]struct{})
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[row[1]]; !ok {
				continue
			}
		}
		ids[row[0]] = struct{}{}
	}
	return ids, nil
}

// LoadCohortIDs is the path form of ReadCohortIDs.
func LoadCohortIDs(path string, labels ...Label) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	return ReadCohortIDs(f, labels...)
}
