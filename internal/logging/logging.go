// Package logging sets up structured logging in a uniform way.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Provided by ldflags during build
var (
	release string
	commit  string
)

// New returns a logger writing to w in the given format ("json" or
// "logfmt") with timestamps and source locations, dropping entries below lvl
// ("debug", "info", "warn", "error").
func New(w io.Writer, format, lvl string) (log.Logger, error) {
	var l log.Logger
	switch strings.ToLower(format) {
	case "", "json":
		l = log.NewJSONLogger(log.NewSyncWriter(w))
	case "logfmt":
		l = log.NewLogfmtLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	opt, err := levelOption(lvl)
	if err != nil {
		return nil, err
	}
	l = level.NewFilter(l, opt)

	return log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

// Announce logs the build identity, once, at startup.
func Announce(l log.Logger) {
	level.Info(l).Log("release", release, "commit", commit, "msg", "Starting")
}

func levelOption(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
}
