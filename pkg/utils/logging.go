/*
 * iptv-stream-extractor turns bulk playlist dumps into a single validated,
 * organized IPTV playlist.
 * Copyright (C) 2025  Angelo Azevedo
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ANSI color escapes used on the console. The log file always gets the
// stripped version.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[91m"
	ColorGreen  = "\033[92m"
	ColorYellow = "\033[93m"
	ColorCyan   = "\033[96m"
	ColorGray   = "\033[90m"
)

var ansiPattern = regexp.MustCompile(`\033\[[0-9;]+m`)

// Config holds the logging configuration shared by the whole process.
var Config = struct {
	mu           sync.Mutex
	ConsoleLevel LogLevel
	NoColors     bool
	LogFilePath  string
	logFile      *os.File
}{
	ConsoleLevel: LevelInfo,
}

func init() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		Config.ConsoleLevel = LevelDebug
	case "warn":
		Config.ConsoleLevel = LevelWarn
	case "error":
		Config.ConsoleLevel = LevelError
	}
	if os.Getenv("DEBUG_LOGGING") == "true" {
		Config.ConsoleLevel = LevelDebug
	}
}

// InitLogging configures the console threshold and opens the optional log
// file. Quiet mode raises the console threshold to warnings; the file, when
// configured, always receives everything from info up.
func InitLogging(logFilePath string, quiet, noColors bool) error {
	Config.mu.Lock()
	defer Config.mu.Unlock()

	Config.NoColors = noColors
	if quiet {
		Config.ConsoleLevel = LevelWarn
	}

	if logFilePath == "" {
		return nil
	}
	if dir := filepath.Dir(logFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
	}
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	Config.LogFilePath = logFilePath
	Config.logFile = file
	fmt.Fprintf(file, "Log started at %s\n", time.Now().Format("2006-01-02 15:04:05"))
	return nil
}

// CloseLogging closes the log file if one is open.
func CloseLogging() {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	if Config.logFile != nil {
		fmt.Fprintf(Config.logFile, "Log ended at %s\n", time.Now().Format("2006-01-02 15:04:05"))
		Config.logFile.Close()
		Config.logFile = nil
	}
}

// Colorize wraps s in the given ANSI color unless colors are disabled.
func Colorize(color, s string) string {
	if Config.NoColors || color == "" {
		return s
	}
	return color + s + ColorReset
}

// DebugLog logs a debug message.
func DebugLog(format string, v ...interface{}) {
	logWithCaller(LevelDebug, "", format, v...)
}

// InfoLog logs an info message.
func InfoLog(format string, v ...interface{}) {
	logWithCaller(LevelInfo, "", format, v...)
}

// WarnLog logs a warning message.
func WarnLog(format string, v ...interface{}) {
	logWithCaller(LevelWarn, ColorYellow, format, v...)
}

// ErrorLog logs an error message.
func ErrorLog(format string, v ...interface{}) {
	logWithCaller(LevelError, ColorRed, format, v...)
}

func logWithCaller(level LogLevel, color, format string, v ...interface{}) {
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, v...)
	logMessage := fmt.Sprintf("%s [%s] (%s) %s", timestamp, levelToString(level), caller, message)

	Config.mu.Lock()
	defer Config.mu.Unlock()

	if level >= Config.ConsoleLevel {
		fmt.Fprintln(os.Stderr, Colorize(color, logMessage))
	}
	if Config.logFile != nil && level >= LevelInfo {
		fmt.Fprintln(Config.logFile, ansiPattern.ReplaceAllString(logMessage, ""))
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
