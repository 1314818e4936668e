package log

import (
	"os"
	"path/filepath"

	"github.com/mbspbs10pc/dcohort-app/conf"
	"github.com/sirupsen/logrus"
)

var (
	// Pipeline covers file loading, cohort classification and sequence
	// extraction; Worker is scoped to the parallel patient scanners.
	Pipeline logrus.FieldLogger
	Worker   logrus.FieldLogger
)

func init() {
	Pipeline = Logger(logrus.New(), conf.GetEnv("DCOHORT_LOG"),
		"pipeline", conf.GetEnv("ENVIRONMENT"))
	Worker = Logger(logrus.New(), conf.GetEnv("DCOHORT_WORKER_LOG"),
		"worker", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
