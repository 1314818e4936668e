package claims

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
)

// PadItemCode left-zero-pads a pharmaceutical item code to the fixed
// six-character notation used by the drug reference lists.
func PadItemCode(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 && code != "" {
		code = "0" + code
	}
	return code
}

// LoadItemCodes reads a single-column reference list of item codes (the
// diabetes drug list, the metformin list). Codes are zero-padded before
// being added to the set. A missing file is fatal at startup.
func LoadItemCodes(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open item code list"}
	}
	defer f.Close()

	return ReadItemCodes(f, path)
}

// ReadItemCodes is the io.Reader form of LoadItemCodes.
func ReadItemCodes(r io.Reader, file string) (map[string]struct{}, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read item code list"}
	}

	codes := make(map[string]struct{})
	for _, col := range df.Names() {
		for _, v := range df.Col(col).Records() {
			if v = strings.TrimSpace(v); v != "" {
				codes[PadItemCode(v)] = struct{}{}
			}
		}
	}
	return codes, nil
}

// LoadCopayments reads the year-indexed co-payment threshold table
// (columns DOC and GBC, the general-beneficiary threshold).
func LoadCopayments(path string) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open co-payment table"}
	}
	defer f.Close()

	return ReadCopayments(f, path)
}

// ReadCopayments is the io.Reader form of LoadCopayments.
func ReadCopayments(r io.Reader, file string) (map[int]float64, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read co-payment table"}
	}
	if err := validate(df, []string{"DOC", "GBC"}); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "co-payment table is not valid"}
	}

	years := df.Col("DOC").Records()
	thresholds := df.Col("GBC").Records()

	out := make(map[int]float64, len(years))
	for i := range years {
		y, err := strconv.Atoi(strings.TrimSpace(years[i]))
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad year in co-payment table"}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(thresholds[i]), 64)
		if err != nil {
			return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "bad threshold in co-payment table"}
		}
		out[y] = v
	}
	return out, nil
}

// LoadBroadCategories reads the service-item to broad-category mapping
// (columns ITEM and BTOS-4D).
func LoadBroadCategories(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open broad category table"}
	}
	defer f.Close()

	return ReadBroadCategories(f, path)
}

// ReadBroadCategories is the io.Reader form of LoadBroadCategories.
func ReadBroadCategories(r io.Reader, file string) (map[string]string, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read broad category table"}
	}
	if err := validate(df, []string{"ITEM", "BTOS-4D"}); err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "broad category table is not valid"}
	}

	items := df.Col("ITEM").Records()
	cats := df.Col("BTOS-4D").Records()

	out := make(map[string]string, len(items))
	for i := range items {
		item := strings.TrimSpace(items[i])
		if item == "" {
			continue
		}
		out[item] = strings.TrimSpace(cats[i])
	}
	return out, nil
}

// LoadConcessionals reads the set of patients continuously and
// consistently eligible for concessional benefits, as computed upstream.
// An empty set is valid and simply yields empty cohorts.
func LoadConcessionals(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open concessionals file"}
	}
	defer f.Close()

	return ReadConcessionals(f, path)
}

// ReadConcessionals is the io.Reader form of LoadConcessionals.
func ReadConcessionals(r io.Reader, file string) (map[string]struct{}, error) {
	df, err := toDataFrame(r)
	if err != nil {
		return nil, &dcerrors.DataFormatError{Err: err, File: file, Msg: "failed to read concessionals file"}
	}
	if err := validate(df, []string{colPatient}); err != nil {
		return nil, &dcerrors.DataFormatError{
			Err:  errors.Wrap(err, "expected a PTNT_ID column"),
			File: file, Msg: "concessionals file is not valid"}
	}

	ids := make(map[string]struct{})
	for _, pin := range df.Col(colPatient).Records() {
		if pin = strings.TrimSpace(pin); pin != "" {
			ids[pin] = struct{}{}
		}
	}
	return ids, nil
}
