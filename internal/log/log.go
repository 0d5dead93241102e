package log

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() { current.Store(zap.NewNop()) }

// Init builds the process logger. A non-empty file receives a JSON copy of
// every entry. The returned func flushes and closes the file.
func Init(level, env, file string) (func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var enc zapcore.EncoderConfig
	var console zapcore.Encoder
	if env == "production" {
		enc = zap.NewProductionEncoderConfig()
		enc.TimeKey = "ts"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		console = zapcore.NewJSONEncoder(enc)
	} else {
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		console = zapcore.NewConsoleEncoder(enc)
	}
	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.Lock(os.Stdout), lvl)}

	closeFile := func() {}
	if file != "" {
		f, ferr := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if ferr != nil {
			err = ferr
		} else {
			fileEnc := zap.NewProductionEncoderConfig()
			fileEnc.TimeKey = "ts"
			fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(f), lvl))
			closeFile = func() { _ = f.Close() }
		}
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Fields(zap.String("service", "backoffice")))
	SetLogger(l)
	zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		closeFile()
	}, err
}

// L returns the process logger.
func L() *zap.Logger { return current.Load() }

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func requestFields(c *fiber.Ctx, action string, fields map[string]any) []zap.Field {
	out := []zap.Field{zap.String("action", action)}
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
	}
	if len(fields) > 0 {
		out = append(out, zap.Any("fields", fields))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, action, fields)...)
}

// Audit records an operator mutation.
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, append(requestFields(c, action, fields), zap.String("kind", "audit"))...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, append(requestFields(c, action, fields), zap.String("kind", "security"))...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, append(requestFields(c, action, fields), zap.Error(err))...)
}

// Middleware writes one access line per request.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fields := requestFields(c, "http.request", nil)
		fields = append(fields, zap.Duration("latency", time.Since(start)))
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		L().Info("http.request", fields...)
		return err
	}
}
