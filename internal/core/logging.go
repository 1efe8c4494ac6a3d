package core

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// LogOptions selects where diagnostic logs go.
type LogOptions struct {
	// Verbose lowers the stderr level to info.
	Verbose bool
	// File, if set, receives debug-level JSON logs.
	File string
}

// SetupLogging configures the package-level logrus logger. The returned
// function closes the log file, if any.
func SetupLogging(opts LogOptions) (func() error, error) {
	if opts.File == "" {
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
		log.SetOutput(os.Stderr)
		if opts.Verbose {
			log.SetLevel(log.InfoLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetFormatter(&log.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: log.FieldMap{
			log.FieldKeyTime:  "timestamp",
			log.FieldKeyLevel: "level",
			log.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.AddHook(NewStderrHook(os.Stderr))
	return f.Close, nil
}

// StderrHook copies error-and-above entries to a terminal while the main
// output goes to a file.
type StderrHook struct {
	Out       io.Writer
	Formatter log.Formatter
}

func NewStderrHook(out io.Writer) *StderrHook {
	return &StderrHook{Out: out, Formatter: &log.TextFormatter{DisableTimestamp: true}}
}

func (h *StderrHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *StderrHook) Fire(e *log.Entry) error {
	b, err := h.Formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.Out.Write(b)
	return err
}
