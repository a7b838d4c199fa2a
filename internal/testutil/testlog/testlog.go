package testlog

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/logging"
)

// Start routes the global logger through t.Log for the duration of a test.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	prev := log.Logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: writer{t}, NoColor: true})
	t.Cleanup(func() { log.Logger = prev })
	log.Info().Msgf("test=%s", t.Name())
}

type writer struct {
	t *testing.T
}

func (w writer) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
