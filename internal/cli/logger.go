package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/logging"
)

var (
	fieldNamesOnce sync.Once  //nolint:gochecknoglobals // zerolog field names are process-wide
	globalLoggerMu sync.Mutex //nolint:gochecknoglobals // guards log.Logger
)

// configureZerologGlobals sets the field names shared by the console and the log file.
func configureZerologGlobals() {
	fieldNamesOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.MessageFieldName = "event"
	})
}

// InitLogger creates the CLI logger at Debug with verbose, Warn with quiet
// and Info otherwise.
//
// Console output is a ConsoleWriter on a TTY without NO_COLOR and JSON on
// stderr otherwise. The logger also writes to <homeDir>/logs/paytoken.log
// with rotation. If the log file cannot be opened, logging continues on the
// console only. The returned closer releases the log file and is never nil.
func InitLogger(verbose, quiet bool, homeDir string) (zerolog.Logger, io.Closer) {
	configureZerologGlobals()

	console := selectOutput()

	var writer io.Writer = console
	var closer io.Closer = nopCloser{}
	if homeDir != "" {
		if fileWriter, err := createLogFileWriter(homeDir); err == nil {
			writer = zerolog.MultiLevelWriter(console, fileWriter)
			closer = fileWriter
		}
	}

	logger := buildLogger(writer, selectLevel(verbose, quiet))
	setGlobalLogger(logger)
	return logger, closer
}

// InitLoggerWithWriter is InitLogger with all output going to w as
// redacted JSON. Tests use it to inspect log lines.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	configureZerologGlobals()
	logger := buildLogger(logging.NewFilteringWriter(w), selectLevel(verbose, quiet))
	setGlobalLogger(logger)
	return logger
}

func buildLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).Hook(logging.NewSensitiveDataHook()).With().Timestamp().Logger()
}

// setGlobalLogger points the zerolog/log package logger at the CLI logger.
func setGlobalLogger(l zerolog.Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	log.Logger = l
}

func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// selectOutput picks a console writer for interactive terminals and raw JSON
// otherwise. Redaction sits below the ConsoleWriter so it still parses the
// original JSON entry.
func selectOutput() io.Writer {
	stderr := logging.NewFilteringWriter(os.Stderr)
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return stderr
}

// filteringWriteCloser redacts sensitive data before it reaches the log file.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

func (fwc *filteringWriteCloser) Write(p []byte) (n int, err error) {
	return fwc.filter.Write(p)
}

func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter creates the rotating CLI log under homeDir.
func createLogFileWriter(homeDir string) (io.WriteCloser, error) {
	logDir := filepath.Join(homeDir, constants.LogsDir)
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.CLILogFileName),
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}

	return &filteringWriteCloser{
		filter: logging.NewFilteringWriter(lj),
		closer: lj,
	}, nil
}

// LogFilePath returns the path to the CLI log file under homeDir.
func LogFilePath(homeDir string) string {
	return filepath.Join(homeDir, constants.LogsDir, constants.CLILogFileName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
