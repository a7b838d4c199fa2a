package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "UNIMASTER_LOG_LEVEL"
	EnvLogJSON    = "UNIMASTER_LOG_JSON"
	EnvLogNoColor = "UNIMASTER_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	baseWriter    io.Writer = os.Stdout
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := defaultLevel(profile)
		if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		zerolog.SetGlobalLevel(level)

		json := false
		if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
			json = v
		}
		if json {
			baseWriter = os.Stdout
		} else {
			cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
			if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
				cw.NoColor = v
			}
			baseWriter = cw
		}

		logger := zerolog.New(baseWriter).With().Str("app", "unimaster")
		if profile != ProfileTest {
			logger = logger.Timestamp()
		}
		log.Logger = logger.Logger()
	})
}

// AttachFileSink adds a buffered file writer next to the console output.
// The tick loop flushes it on the housekeeping cadence.
func AttachFileSink(dir string) (*FileSink, error) {
	sink, err := NewFileSink(dir)
	if err != nil {
		return nil, err
	}
	log.Logger = log.Logger.Output(zerolog.MultiLevelWriter(baseWriter, sink))
	return sink, nil
}

func defaultLevel(profile Profile) zerolog.Level {
	if profile == ProfileTest {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
