package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/go-minix/kernel/cfg"
)

type LoggerSuite struct {
	suite.Suite
	buf bytes.Buffer
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.buf.Reset()
	SetOutput(&s.buf)
}

func (s *LoggerSuite) runAtSeverity(sev cfg.LogSeverity) []string {
	var out []string
	fns := []func(){
		func() { Tracef("hello %s", "trace") },
		func() { Debugf("hello %s", "debug") },
		func() { Infof("hello %s", "info") },
		func() { Warnf("hello %s", "warn") },
		func() { Errorf("hello %s", "error") },
	}
	SetSeverity(sev)
	for _, f := range fns {
		s.buf.Reset()
		f()
		out = append(out, s.buf.String())
	}
	return out
}

func (s *LoggerSuite) TestSeverityOff() {
	for _, line := range s.runAtSeverity(cfg.OffLogSeverity) {
		s.Empty(line)
	}
}

func (s *LoggerSuite) TestSeverityErrorOnlyEmitsError() {
	out := s.runAtSeverity(cfg.ErrorLogSeverity)
	for i := 0; i < 4; i++ {
		s.Empty(out[i])
	}
	s.Contains(out[4], "severity=ERROR")
	s.Contains(out[4], "hello error")
}

func (s *LoggerSuite) TestSeverityTraceEmitsEverything() {
	out := s.runAtSeverity(cfg.TraceLogSeverity)
	s.Contains(out[0], "severity=TRACE")
	s.Contains(out[1], "severity=DEBUG")
	s.Contains(out[2], "severity=INFO")
	s.Contains(out[3], "severity=WARNING")
	s.Contains(out[4], "severity=ERROR")
}

func TestFatalPanicsAfterLogging(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetSeverity(cfg.ErrorLogSeverity)
	assert.Panics(t, func() { Fatal("bitmap sentinel corrupt on dev %d", 1) })
	assert.Contains(t, buf.String(), "bitmap sentinel corrupt on dev 1")
}
