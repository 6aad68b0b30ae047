package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/sirupsen/logrus"
)

// RequestLogger logs one structured line per request through logrus.
// Server errors are logged at error level, client errors at warn.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogMethod:    true,
        LogURI:       true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            entry := log.WithFields(logrus.Fields{
                "method":     v.Method,
                "uri":        v.URI,
                "status":     v.Status,
                "latency_ms": v.Latency.Milliseconds(),
                "remote_ip":  v.RemoteIP,
                "user":       userKey(c),
            })
            if v.RequestID != "" {
                entry = entry.WithField("request_id", v.RequestID)
            }
            switch {
            case v.Error != nil || v.Status >= 500:
                entry.WithError(v.Error).Error("request")
            case v.Status >= 400:
                entry.Warn("request")
            default:
                entry.Info("request")
            }
            return nil
        },
    })
}
