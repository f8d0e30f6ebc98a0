package conlog

import "github.com/sirupsen/logrus"

// Logrus adapts a *logrus.Logger (or logrus.StandardLogger()) to Logger.
type Logrus struct {
	L *logrus.Logger
}

// NewLogrus returns a Logger backed by l. A nil l falls back to
// logrus.StandardLogger().
func NewLogrus(l *logrus.Logger) Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logrus{L: l}
}

func (lg Logrus) Debugf(format string, args ...any) { lg.L.Debugf(format, args...) }
func (lg Logrus) Warnf(format string, args ...any)  { lg.L.Warnf(format, args...) }
func (lg Logrus) Errorf(format string, args ...any) { lg.L.Errorf(format, args...) }
