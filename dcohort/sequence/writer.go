package sequence

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// WriteCSV serializes the feature table as PIN,seq,avg_age,last_pinstate,sex.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"PIN", "seq", "avg_age", "last_pinstate", "sex"}); err != nil {
		return errors.Wrap(err, "failed to write sequence header")
	}

	for _, row := range rows {
		record := []string{
			row.PatientID,
			row.Seq,
			strconv.FormatFloat(row.AvgAge, 'f', -1, 64),
			row.LastRegion,
			row.Sex,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write sequence row for %s", row.PatientID)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush sequence output")
}

// SaveCSV writes the feature table to path.
func SaveCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", path)
	}
	defer f.Close()

	return WriteCSV(f, rows)
}
