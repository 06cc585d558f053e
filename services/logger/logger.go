package logsvc

import (
	"fmt"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/user"
)

// Logger writes structured logs with zap and reports them to rollbar when a token is configured.
type Logger struct {
	zap     *zap.Logger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(conf *core.Config) *Logger {
	l := &Logger{zap: newZap(conf), rollbar: conf.RollbarToken != ""}
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(l.rollbar)
	return l
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newZap(conf *core.Config) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var (
		encoder zapcore.Encoder
		level   = zapcore.InfoLevel
	)
	if conf.Debug {
		level = zapcore.DebugLevel
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	c := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(c, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("app", conf.AppName), zap.String("env", conf.Env))
}

func (l *Logger) Sync() {
	_ = l.zap.Sync()
	if l.rollbar {
		rollbar.Wait()
	}
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *Logger) prepare(msg string, args []interface{}) ([]zap.Field, []interface{}) {
	var usrSet bool
	fields := make([]zap.Field, 0, len(args))
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if usrSet { // only set one User
				continue
			}
			usrSet = true
			fields = append(fields, zap.String("user_id", a.ID), zap.String("username", a.Username))
			if l.rollbar {
				rollbar.SetPerson(a.ID, a.Username, a.Email)
			}
		case error:
			fields = append(fields, zap.Error(a))
			rbArgs = append(rbArgs, a)
		case map[string]interface{}:
			for k, v := range a {
				fields = append(fields, zap.Any(k, v))
			}
			rbArgs = append(rbArgs, a)
		default:
			fields = append(fields, zap.String("extra", fmt.Sprintf("%+v", a)))
		}
	}
	if l.rollbar && !usrSet {
		rollbar.ClearPerson()
	}
	return fields, rbArgs
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	fields, _ := l.prepare(msg, args)
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	l.zap.Info(msg, fields...)
	if l.rollbar {
		rollbar.Info(rbArgs...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	l.zap.Warn(msg, fields...)
	if l.rollbar {
		rollbar.Warning(rbArgs...)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	l.zap.Error(msg, fields...)
	if l.rollbar {
		rollbar.Error(rbArgs...)
	}
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	fields, rbArgs := l.prepare(msg, args)
	if l.rollbar {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.zap.Fatal(msg, fields...)
}
