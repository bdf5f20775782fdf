// Package logging provides marty's single process-wide structured logger,
// in the teacher's logrus-based idiom.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return log
}

// Logger returns the shared logger instance.
func Logger() *logrus.Logger {
	return logger
}

// SetLevel adjusts the shared logger's verbosity.
func SetLevel(level logrus.Level) {
	logger.SetLevel(level)
}

// WithProject returns an entry tagged with a project name.
func WithProject(project string) *logrus.Entry {
	return logger.WithField("project", project)
}

// WithPlugin returns an entry tagged with a plugin key.
func WithPlugin(plugin string) *logrus.Entry {
	return logger.WithField("plugin", plugin)
}

// WithTask returns an entry tagged with a project:task pair.
func WithTask(project, task string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"project": project, "task": task})
}
