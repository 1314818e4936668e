package claimsfile

import (
	"io"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbspbs10pc/dcohort-app/testUtils"
)

func testHandler() *LocalFileHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &LocalFileHandler{Logger: logger}
}

func TestLoadClaimsFiles(t *testing.T) {
	path, cleanup := testUtils.CopyToTemporaryDirectory(t, "testdata/dataset")
	defer cleanup()

	handler := testHandler()
	files, skipped, err := handler.LoadClaimsFiles(path)
	require.NoError(t, err)

	// README.txt is not a recognized claims file
	assert.Equal(t, 1, skipped)
	require.Len(t, files, 4)

	var pharmacyYears []int
	var lookups, services int
	for _, file := range files {
		assert.NotEmpty(t, file.FilePath)
		assert.False(t, file.DeliveryDate.IsZero())
		switch file.Type {
		case FileTypePharmacy:
			pharmacyYears = append(pharmacyYears, file.Year)
		case FileTypeService:
			services++
		case FileTypePinLookup:
			lookups++
		}
	}
	sort.Ints(pharmacyYears)
	assert.Equal(t, []int{2011, 2012}, pharmacyYears)
	assert.Equal(t, 1, services)
	assert.Equal(t, 1, lookups)
}

func TestLoadClaimsFilesMissingRoot(t *testing.T) {
	handler := testHandler()
	_, _, err := handler.LoadClaimsFiles("testdata/no-such-directory")
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	handler := testHandler()
	files, _, err := handler.LoadClaimsFiles("testdata/dataset")
	require.NoError(t, err)

	var lookup *Metadata
	for _, file := range files {
		if file.Type == FileTypePinLookup {
			lookup = file
		}
	}
	require.NotNil(t, lookup)

	r, err := handler.OpenFile(lookup)
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(content), "PIN,SEX,YOB")
}

func TestOpenFileMissing(t *testing.T) {
	handler := testHandler()
	_, err := handler.OpenFile(&Metadata{Name: "gone.csv", FilePath: "testdata/gone.csv"})
	assert.Error(t, err)
}

func TestNewFileHandler(t *testing.T) {
	local := testHandler()
	s3 := &S3FileHandler{}

	assert.Same(t, FileHandler(local), NewFileHandler("/data/claims", local, s3))
	assert.Same(t, FileHandler(s3), NewFileHandler("s3://bucket/claims", local, s3))
}
