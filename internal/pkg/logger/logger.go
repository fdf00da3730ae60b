package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

// Setup настраивает глобальный zerolog: консольный вывод в development, JSON иначе
func Setup(level string, development bool) {
	SetupWriter(os.Stdout, level, development)
}

func SetupWriter(w io.Writer, level string, development bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if development {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// GormLevel уровень логгера gorm, согласованный с глобальным уровнем
func GormLevel(development bool) gormlogger.LogLevel {
	if development {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
