package testlog

import (
	"testing"

	"github.com/softframe/embedctl/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logger := logging.New("test")
	logger.Info().Str("test", t.Name()).Msg("start")
}
