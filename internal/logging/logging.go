package logging

import (
	"os"

	"github.com/jahua/data-warehouse/internal/config"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the process-wide logger. Unknown levels fall back to info
// instead of failing startup. When LOG_FILE_PATH is set, entries are also
// written as JSON to a size-rotated file.
func Setup(cfg config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.LogFilePath == "" {
		return
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     cfg.LogMaxAgeDays,
	}
	log.AddHook(lfshook.NewHook(
		lfshook.WriterMap{
			log.DebugLevel: writer,
			log.InfoLevel:  writer,
			log.WarnLevel:  writer,
			log.ErrorLevel: writer,
			log.FatalLevel: writer,
			log.PanicLevel: writer,
		},
		&log.JSONFormatter{},
	))
}
