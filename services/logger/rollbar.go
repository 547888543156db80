package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// RollbarLogger reports to Rollbar (when a token is configured) and mirrors every entry to a zap sink.
type RollbarLogger struct {
	sink *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(sink *zap.SugaredLogger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.AppName)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{sink: sink}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sink exposes the zap logger the entries are mirrored to.
func (l RollbarLogger) Sink() *zap.SugaredLogger { return l.sink }

// expected fmt: msg | error, map[string]interface{}, user.Viewer
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var viewerSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]interface{}, 0, 2*len(args))
	for i, arg := range args {
		switch arg := arg.(type) {
		case user.Viewer:
			if !viewerSet { // only set one Viewer
				rollbar.SetPerson(arg.ID, arg.Name, "")
				viewerSet = true
			}
			fields = append(fields, "viewer", arg.ID, "role", string(arg.Role))
		case error:
			rbArgs = append(rbArgs, arg)
			fields = append(fields, "error", arg)
		case map[string]interface{}:
			rbArgs = append(rbArgs, arg)
			for k, v := range arg {
				fields = append(fields, k, v)
			}
		default:
			rbArgs = append(rbArgs, arg)
			fields = append(fields, fmt.Sprintf("arg%d", i), arg)
		}
	}
	if !viewerSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.sink.Debugw(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.sink.Infow(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.sink.Warnw(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.sink.Errorw(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.sink.Fatalw(msg, fields...)
}

// Close flushes the pending Rollbar reports and the zap buffers.
func (l RollbarLogger) Close() {
	rollbar.Wait()
	_ = l.sink.Sync()
}
