package util

import (
	"io"
	"log"
	"os"
)

var (
	currentLevel LogLevel = LogLevelInfo
	logger                = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func SetLevel(level LogLevel) {
	currentLevel = level
}

func Level() LogLevel {
	return currentLevel
}

// SetOutput redirects every leveled log line, mainly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Debug(format string, v ...interface{}) {
	if currentLevel <= LogLevelDebug {
		logger.Printf("[DEBUG] "+format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if currentLevel <= LogLevelInfo {
		logger.Printf("[INFO] "+format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if currentLevel <= LogLevelWarn {
		logger.Printf("[WARN] "+format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if currentLevel <= LogLevelError {
		logger.Printf("[ERROR] "+format, v...)
	}
}

func Fatal(format string, v ...interface{}) {
	logger.Printf("[FATAL] "+format, v...)
	os.Exit(1)
}
