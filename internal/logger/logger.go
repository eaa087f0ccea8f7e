package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Logger wraps zerolog.Logger with printf-style helpers
type Logger struct {
	zerolog.Logger
}

// New creates a console logger on stdout. Colour is only used on a terminal.
func New() *Logger {
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    !isTerminal,
		TimeFormat: time.TimeOnly,
	}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-5s|", i))
	}

	return &Logger{
		Logger: zerolog.New(output).With().Timestamp().Logger(),
	}
}

// NewWriter creates a logger that writes JSON lines to the provided writer
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// SetLevel sets the minimum level by name (debug, info, warn, error).
// Unknown names leave the level unchanged and return an error.
func (l *Logger) SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	l.Logger = l.Logger.Level(lvl)
	return nil
}

// Printf logs at info level, matching log.Logger usage
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Logger.Info().Msgf(format, args...)
}

// Println logs its arguments at info level
func (l *Logger) Println(args ...interface{}) {
	l.Logger.Info().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Logger.Error().Msgf(format, args...)
}
