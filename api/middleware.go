package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestID tags every request and response with an X-Request-Id, keeping one
// supplied by the client.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// CORS allows the front end to call the API from any origin.
func CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding, HeaderIdempotencyKey},
		ExposeHeaders: []string{echo.HeaderXRequestID, HeaderIdempotentReplay},
	})
}

// GzipRequestMiddleware inflates request bodies sent with
// Content-Encoding: gzip before they reach the task handlers. A body that is not
// valid gzip gets 400 {"message":"invalid gzip body"} and the request is
// recorded with error stage "gzip".
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}
			body, err := newInflatedBody(req.Body)
			if err != nil {
				setErrorStage(c, "gzip")
				return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid gzip body"})
			}
			req.Body = body
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// inflatedBody reads through gzip and closes the raw request body with it.
type inflatedBody struct {
	zr  *gzip.Reader
	raw io.ReadCloser
}

func newInflatedBody(raw io.ReadCloser) (*inflatedBody, error) {
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &inflatedBody{zr: zr, raw: raw}, nil
}

func (b *inflatedBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *inflatedBody) Close() error {
	return errors.Join(b.zr.Close(), b.raw.Close())
}
