// Package monitoring provides the zap-backed logger and Prometheus metrics for
// the authentication layer.
package monitoring

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/logger"
)

type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger creates a production JSON logger at the given level ("debug",
// "info", "warn", "error"). Unknown levels fall back to info.
func NewZapLogger(level string) logger.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		lvl,
	)

	return &zapLogger{l: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))}
}

func (z *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	z.l.Debug(msg, z.convert(ctx, fields)...)
}

func (z *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	z.l.Info(msg, z.convert(ctx, fields)...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	z.l.Warn(msg, z.convert(ctx, fields)...)
}

func (z *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	all := append(fields, logger.Error(err))
	z.l.Error(msg, z.convert(ctx, all)...)
}

func (z *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{l: z.l.With(zap.String("component", component))}
}

func (z *zapLogger) convert(ctx context.Context, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+1)
	if ctx != nil {
		if reqID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && reqID != "" {
			zapFields = append(zapFields, zap.String("request_id", reqID))
		}
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
