package common

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	mu     sync.RWMutex
	once   sync.Once
)

func getLogger() *zap.Logger {
	once.Do(initLogger)
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func GetLogger() *zap.Logger {
	return getLogger().Named("default")
}

func GetLoggerWith(name string, fields ...zap.Field) *zap.Logger {
	return getLogger().Named(name).With(fields...)
}

// GetStdLogger bridges libraries that only accept a *log.Logger (the mqtt
// client) into the zap core at the given level.
func GetStdLogger(name string, level zapcore.Level) *log.Logger {
	stdLogger, err := zap.NewStdLogAt(getLogger().Named(name), level)
	if err != nil {
		return zap.NewStdLog(getLogger().Named(name))
	}
	return stdLogger
}

func initLogger() {
	dir, err := os.Getwd()
	if err != nil {
		log.Fatalf("Error getting current directory: %v", err)
	}

	logsDir := fmt.Sprintf("%s/logs", dir)
	logsFile := fmt.Sprintf("%s/app.log", logsDir)

	if err := os.MkdirAll(logsDir, os.ModePerm); err != nil {
		log.Fatalf("Error find/create logs directory: %v", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   logsFile,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28,   // days
		Compress:   true, // gzip
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)

	mu.Lock()
	defer mu.Unlock()

	if IsProduction() {
		logger = zap.New(fileCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		return
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.DebugLevel)

	combinedCore := zapcore.NewTee(fileCore, consoleCore)
	logger = zap.New(combinedCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func setLogger(l *zap.Logger) {
	// the default logger is never built in tests, so no logs dir is created
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func SetTestCaptureLogger(buf *bytes.Buffer, level zapcore.Level) {
	writer := zapcore.AddSync(&lockedBuffer{buf: buf})
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, writer, level)
	setLogger(zap.New(core))
}

func SetTestLoggerNop() {
	setLogger(zap.NewNop())
}

// message handlers log from many goroutines at once
type lockedBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
