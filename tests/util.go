package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/masomo-portal/core"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
)

// NewLogger returns the application logger writing to the test output. The entries are also
// recorded so tests can assert on them.
func NewLogger(t testing.TB) (core.Logger, *observer.ObservedLogs) {
	t.Helper()
	obs, logs := observer.New(zapcore.DebugLevel)
	tee := zapcore.NewTee(zaptest.NewLogger(t).Core(), obs)
	conf := *core.Conf
	conf.RollbarToken = ""
	return logsvc.NewRollbarLogger(zap.New(tee).Sugar(), &conf), logs
}

// Messages lists the messages of the recorded entries at the given level.
func Messages(logs *observer.ObservedLogs, level zapcore.Level) []string {
	var msgs []string
	for _, e := range logs.FilterLevelExact(level).All() {
		msgs = append(msgs, e.Message)
	}
	return msgs
}
