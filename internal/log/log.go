package log

import (
	"os"
	"path/filepath"

	"github.com/ListenOcean/hookinjector/configs"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level = zapcore.Level

const (
	InfoLevel  = zap.InfoLevel  // 0, default level
	WarnLevel  = zap.WarnLevel  // 1
	ErrorLevel = zap.ErrorLevel // 2
	DebugLevel = zap.DebugLevel // -1
)

type Field = zap.Field

// function variables for the field types used by the tool,
// see github.com/uber-go/zap/field.go

var (
	Bool     = zap.Bool
	Int      = zap.Int
	String   = zap.String
	Strings  = zap.Strings
	Stringer = zap.Stringer
	Duration = zap.Duration
	Err      = zap.Error
	Any      = zap.Any

	Info = func(msg string, fields ...zap.Field) {
		if stdLogger != nil {
			stdLogger.Info(msg, fields...)
		}
	}
	Warn = func(msg string, fields ...zap.Field) {
		if stdLogger != nil {
			stdLogger.Warn(msg, fields...)
		}
	}
	Error = func(msg string, fields ...zap.Field) {
		if stdLogger != nil {
			stdLogger.Error(msg, fields...)
		}
	}
	Debug = func(msg string, fields ...zap.Field) {
		if stdLogger != nil {
			stdLogger.Debug(msg, fields...)
		}
	}
)

type Logger struct {
	*zap.Logger // zap ensure that zap.Logger is safe for concurrent use
	level       Level
}

func Default() *Logger {
	return stdLogger
}

func (l *Logger) Level() Level {
	return l.level
}

var stdLogger *Logger

// LogFileName is the run log of the current process, empty when logging
// to the console only.
var LogFileName string

var encoderCfg = zapcore.EncoderConfig{
	MessageKey:     "msg",
	LevelKey:       "level",
	TimeKey:        "ts",
	NameKey:        "logger",
	CallerKey:      "caller",
	FunctionKey:    "func",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// New create a logger writing to stdout and, when dir is not empty, to the
// run log inside dir (not support log rotating).
func New(dir string, verbose bool) *Logger {
	consoleLevel := InfoLevel
	if verbose {
		consoleLevel = DebugLevel
	}
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), consoleLevel)
	if dir == "" {
		return &Logger{Logger: zap.New(consoleCore, zap.AddCaller()), level: consoleLevel}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Logger{Logger: zap.New(consoleCore, zap.AddCaller()), level: consoleLevel}
	}
	LogFileName = filepath.Join(dir, configs.RunLogName)
	logFile, err := os.OpenFile(LogFileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		LogFileName = ""
		return &Logger{Logger: zap.New(consoleCore, zap.AddCaller()), level: consoleLevel}
	}
	fileCfg := encoderCfg
	fileCfg.EncodeCaller = nil
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(logFile), DebugLevel)

	return &Logger{
		Logger: zap.New(zapcore.NewTee(consoleCore, fileCore)),
		level:  DebugLevel,
	}
}

// Init replaces the process logger.
func Init(dir string, verbose bool) {
	Sync()
	stdLogger = New(dir, verbose)
}

// InitConsole is Init without a run log, used before the log directory is
// known.
func InitConsole(verbose bool) {
	Init("", verbose)
}

func Sync() error {
	if stdLogger != nil {
		return stdLogger.Sync()
	}
	return nil
}
