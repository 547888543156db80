package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/masomo-portal/core"
)

// NewSink builds the zap logger entries are written to: human readable on stderr in debug mode,
// JSON at info level otherwise.
func NewSink(conf *core.Config) (*zap.SugaredLogger, error) {
	var zconf zap.Config
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zconf = zap.NewProductionConfig()
	}
	zconf.OutputPaths = []string{"stderr"}
	zconf.InitialFields = map[string]interface{}{"app": conf.AppName, "env": conf.Env}

	lg, err := zconf.Build()
	if err != nil {
		return nil, err
	}
	return lg.Sugar(), nil
}

// New is the application logger: Rollbar reporting mirrored to the zap sink.
func New(conf *core.Config) (*RollbarLogger, error) {
	sink, err := NewSink(conf)
	if err != nil {
		return nil, err
	}
	return NewRollbarLogger(sink, conf), nil
}
