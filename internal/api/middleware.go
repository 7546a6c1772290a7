package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"k8s.io/klog/v2"
)

const headerRequestID = "X-Request-Id"

// RequestIDMiddleware ensures every request has a unique X-Request-Id.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(headerRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(headerRequestID, id)
			c.Set("request_id", id)
			return next(c)
		}
	}
}

// LoggingMiddleware logs each request at verbosity 1.
func LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			klog.V(1).Infof("api: request_id=%v %s %s status=%d latency=%s",
				c.Get("request_id"), c.Request().Method, c.Request().URL.Path,
				c.Response().Status, time.Since(start))
			return err
		}
	}
}
