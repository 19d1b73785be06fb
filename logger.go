package lunarys

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DiscardLogger returns a logger that drops every entry.
func DiscardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
