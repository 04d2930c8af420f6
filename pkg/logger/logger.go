package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.elastic.co/ecslogrus"
)

const (
	// LOG_LEVEL Minimum level logged (trace, debug, info, warn, error...), info if unset
	LOG_LEVEL = "LOG_LEVEL"
	// LOG_FORMAT "text" for human readable lines, ECS JSON documents otherwise
	LOG_FORMAT = "LOG_FORMAT"
)

// Build Build a new logger, configured from the environment. Logs go to stderr, so that the
// standard output of a command line run only carries its result
func Build() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if strings.EqualFold(os.Getenv(LOG_FORMAT), "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&ecslogrus.Formatter{})
	}
	if level, err := logrus.ParseLevel(os.Getenv(LOG_LEVEL)); err == nil {
		log.SetLevel(level)
	}
	return log
}
