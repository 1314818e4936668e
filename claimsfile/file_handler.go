package claimsfile

import "io"

// File handlers discover claims files under a dataset root and open them
// for reading. This interface allows the pipeline to consume inputs from
// multiple sources, including local directories and AWS S3.
type FileHandler interface {
	// Discover the input files under the given root.
	//
	// Return the metadata parsed from recognized filenames, and the number
	// of files skipped because their names were not recognized.
	LoadClaimsFiles(root string) (files []*Metadata, skipped int, err error)
	// Open a given claims file, specified by the metadata struct.
	OpenFile(metadata *Metadata) (io.ReadCloser, error)
}

// NewFileHandler picks the handler matching the dataset root.
func NewFileHandler(root string, local *LocalFileHandler, s3 *S3FileHandler) FileHandler {
	if IsS3Path(root) {
		return s3
	}
	return local
}
