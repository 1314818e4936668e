package claimsfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	pharmacyRegexp = regexp.MustCompile(`^PBS_SAMPLE_10PCT_(\d{4})\.csv$`)
	serviceRegexp  = regexp.MustCompile(`^MBS_.*\.csv$`)
	lookupRegexp   = regexp.MustCompile(`^SAMPLE_PIN_LOOKUP\.csv$`)
)

// ParseMetadata classifies an input filename and, for pharmacy files,
// extracts the claims year. Unknown filenames are an error; callers decide
// whether that is fatal or merely skippable.
func ParseMetadata(filename string) (Metadata, error) {
	var metadata Metadata
	metadata.Name = filename

	if matches := pharmacyRegexp.FindStringSubmatch(filename); len(matches) == 2 {
		year, err := strconv.Atoi(matches[1])
		if err != nil {
			return metadata, fmt.Errorf("failed to parse year from file: %s", filename)
		}
		metadata.Type = FileTypePharmacy
		metadata.Year = year
		return metadata, nil
	}

	if serviceRegexp.MatchString(filename) {
		metadata.Type = FileTypeService
		return metadata, nil
	}

	if lookupRegexp.MatchString(filename) {
		metadata.Type = FileTypePinLookup
		return metadata, nil
	}

	return metadata, fmt.Errorf("invalid filename for file: %s", filename)
}

// ParseS3Uri parses an S3 URI and returns the bucket and key.
//
// @example:
//
//	input: s3://my-bucket/path/to/file
//	output: "my-bucket", "path/to/file"
func ParseS3Uri(str string) (bucket string, key string) {
	workingString := strings.TrimPrefix(str, "s3://")
	resultArr := strings.SplitN(workingString, "/", 2)

	if len(resultArr) == 1 {
		return resultArr[0], ""
	}

	return resultArr[0], resultArr[1]
}

// IsS3Path reports whether a dataset root points at an S3 bucket rather
// than a local directory.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, "s3://")
}
