package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redacted заменяет значения чувствительных полей.
const Redacted = "[REDACTED]"

// sensitiveKeys - ключи полей, значения которых не попадают в лог (токены пользователей, ключи AI).
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"auth_token":    {},
	"token":         {},
	"api_key":       {},
	"apikey":        {},
	"credential":    {},
	"password":      {},
	"jwt_secret":    {},
}

// Config - настройки корневого логгера сервиса.
type Config struct {
	Level       string // debug, info, warn, error
	Encoding    string // json или console
	OutputPath  string // файл лога; пусто - stdout
	ServiceName string // добавляется полем "service" в каждую запись
	Development bool   // caller и цветные уровни в console

	// Сэмплирование одинаковых записей в пределах секунды: первые SampleInitial пишутся,
	// дальше каждая SampleThereafter. SampleInitial = 0 выключает сэмплирование.
	SampleInitial    int
	SampleThereafter int
}

// New собирает zap.Logger по конфигурации. Неизвестный уровень заменяется на info,
// неизвестная кодировка - на json.
func New(cfg Config) (*zap.Logger, error) {
	path := cfg.OutputPath
	if path == "" {
		path = "stdout"
	}
	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", path, err)
	}

	var core zapcore.Core = &redactingCore{Core: zapcore.NewCore(newEncoder(cfg), sink, parseLevel(cfg.Level))}
	if cfg.SampleInitial > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, cfg.SampleInitial, cfg.SampleThereafter)
	}

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.Development {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	log := zap.New(core, opts...)
	if cfg.ServiceName != "" {
		log = log.With(zap.String("service", cfg.ServiceName))
	}
	return log, nil
}

func parseLevel(raw string) zapcore.Level {
	s := strings.TrimSpace(raw)
	if s == "" {
		return zapcore.InfoLevel
	}
	level, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		// Логгера еще нет, пишем в stderr
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", raw, err)
		return zapcore.InfoLevel
	}
	return level
}

func newEncoder(cfg Config) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if strings.ToLower(strings.TrimSpace(cfg.Encoding)) == "console" {
		if cfg.Development {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// redactingCore скрывает значения полей из sensitiveKeys, в том числе добавленных через With.
type redactingCore struct {
	zapcore.Core
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redact(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, redact(fields))
}

func redact(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if _, ok := sensitiveKeys[strings.ToLower(f.Key)]; !ok {
			continue
		}
		if out == nil {
			out = make([]zapcore.Field, len(fields))
			copy(out, fields)
		}
		out[i] = zap.String(f.Key, Redacted)
	}
	if out == nil {
		return fields
	}
	return out
}
