package claimsfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fileType FileType
		year     int
	}{
		{"pharmacy", "PBS_SAMPLE_10PCT_2012.csv", FileTypePharmacy, 2012},
		{"pharmacy earliest year", "PBS_SAMPLE_10PCT_2008.csv", FileTypePharmacy, 2008},
		{"service", "MBS_SAMPLE_10PCT_2012.csv", FileTypeService, 0},
		{"service any suffix", "MBS_Demographics_2014.csv", FileTypeService, 0},
		{"pin lookup", "SAMPLE_PIN_LOOKUP.csv", FileTypePinLookup, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata, err := ParseMetadata(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.filename, metadata.Name)
			assert.Equal(t, tt.fileType, metadata.Type)
			assert.Equal(t, tt.year, metadata.Year)
		})
	}
}

func TestParseMetadataInvalidFilenames(t *testing.T) {
	names := []string{
		"PBS_SAMPLE_10PCT_12.csv", // year must be four digits
		"PBS_SAMPLE_10PCT_2012.txt",
		"pbs_sample_10pct_2012.csv", // case matters
		"SAMPLE_PIN_LOOKUP_V2.csv",
		"README.txt",
		"",
	}

	for _, name := range names {
		metadata, err := ParseMetadata(name)
		assert.Error(t, err, name)
		assert.Equal(t, FileTypeUnknown, metadata.Type)
	}
}

func TestFileTypeString(t *testing.T) {
	assert.Equal(t, "pharmacy", FileTypePharmacy.String())
	assert.Equal(t, "service", FileTypeService.String())
	assert.Equal(t, "pin-lookup", FileTypePinLookup.String())
	assert.Equal(t, "unknown", FileTypeUnknown.String())
}

func TestParseS3Uri(t *testing.T) {
	bucket, key := ParseS3Uri("s3://my-bucket/path/to/file")
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/file", key)

	bucket, key = ParseS3Uri("s3://my-bucket")
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "", key)
}

func TestIsS3Path(t *testing.T) {
	assert.True(t, IsS3Path("s3://bucket/prefix"))
	assert.False(t, IsS3Path("/data/claims"))
	assert.False(t, IsS3Path("relative/path"))
}
