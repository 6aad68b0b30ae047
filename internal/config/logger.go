package config

import (
    "os"

    "github.com/sirupsen/logrus"
)

// NewLogger builds the process logger: JSON in prod, coloured text
// elsewhere.  Unknown levels fall back to info.
func NewLogger(cfg Config) *logrus.Logger {
    log := logrus.New()
    log.SetOutput(os.Stdout)
    if cfg.Env == "prod" || cfg.Env == "production" {
        log.SetFormatter(&logrus.JSONFormatter{})
    } else {
        log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
    }
    level, err := logrus.ParseLevel(cfg.LogLevel)
    if err != nil {
        level = logrus.InfoLevel
    }
    log.SetLevel(level)
    return log
}
