package common

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoggingCapture(t *testing.T) {
	var buf bytes.Buffer
	SetTestCaptureLogger(&buf, zapcore.InfoLevel)

	logger := GetLoggerWith(LoggerNameIOTCore, zap.String(LoggerFieldCategory, LoggerCategoryAlert))
	logger.Info("Test log message", zap.String("key", "value"))

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Test log message") {
		t.Errorf("expected log output to contain message, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, `"logger":"iot_core"`) {
		t.Errorf("expected named logger in output, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, `"category":"alert"`) {
		t.Errorf("expected category field in output, got: %s", logOutput)
	}
}

func TestLoggingCaptureBelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	SetTestCaptureLogger(&buf, zapcore.WarnLevel)

	GetLogger().Info("quiet")
	GetLogger().Warn("loud")

	logOutput := buf.String()
	if strings.Contains(logOutput, "quiet") {
		t.Errorf("info entry should be filtered, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "loud") {
		t.Errorf("warn entry missing, got: %s", logOutput)
	}
}

func TestStdLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	SetTestCaptureLogger(&buf, zapcore.InfoLevel)

	GetStdLogger(LoggerNameMQTTSession, zapcore.WarnLevel).Println("[client] connection lost")

	logOutput := buf.String()
	if !strings.Contains(logOutput, "connection lost") || !strings.Contains(logOutput, `"level":"warn"`) {
		t.Errorf("expected bridged warn entry, got: %s", logOutput)
	}
}
