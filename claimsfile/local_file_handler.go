package claimsfile

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LocalFileHandler discovers claims files in a local directory tree.
type LocalFileHandler struct {
	Logger logrus.FieldLogger
}

func (handler *LocalFileHandler) LoadClaimsFiles(root string) (files []*Metadata, skipped int, err error) {
	err = filepath.Walk(root, handler.getClaimsFileMetadata(&files, &skipped))
	return files, skipped, err
}

func (handler *LocalFileHandler) getClaimsFileMetadata(files *[]*Metadata, skipped *int) filepath.WalkFunc {
	return func(path string, info os.FileInfo, err error) error {
		if err != nil {
			var fileName = "nil"
			if info != nil {
				fileName = info.Name()
			}
			err = errors.Wrapf(err, "error in checking claims file: %s,", fileName)
			handler.Logger.Error(err)
			return err
		}
		// Directories are not claims files
		if info.IsDir() {
			return nil
		}

		metadata, err := ParseMetadata(info.Name())
		metadata.FilePath = path
		metadata.DeliveryDate = info.ModTime()
		if err != nil {
			// An unrecognized file in the dataset root isn't a blocker
			handler.Logger.Warnf("Unknown file found: %s. Skipping.", metadata)
			*skipped = *skipped + 1
			return nil
		}

		*files = append(*files, &metadata)
		return nil
	}
}

func (handler *LocalFileHandler) OpenFile(metadata *Metadata) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Clean(metadata.FilePath))
	if err != nil {
		err = errors.Wrapf(err, "could not read file %s", metadata)
		handler.Logger.Error(err)
		return nil, err
	}
	return f, nil
}
