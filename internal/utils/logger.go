package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger sets the global zerolog logger. Console output goes to stderr;
// a non-empty logFile adds a rotated JSON log and raises the level to info.
func InitLogger(debug bool, logFile string) {
	switch {
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case logFile != "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	if logFile != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
