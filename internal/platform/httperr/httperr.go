// Package httperr renders every failed request as the same JSON envelope.
package httperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the body written for every error.
type Response struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Rule maps a class of domain errors onto a status code. Message, when set,
// replaces err.Error() in the envelope.
type Rule struct {
	Match   func(error) bool
	Status  int
	Message func(error) string
}

var labels = map[int]string{
	http.StatusBadRequest:            "Bad Request",
	http.StatusNotFound:              "Not Found",
	http.StatusMethodNotAllowed:      "Method not Allowed",
	http.StatusRequestEntityTooLarge: "Request Entity Too Large",
	http.StatusUnsupportedMediaType:  "Unsupported media type",
	http.StatusInternalServerError:   "Internal Server Error",
}

// Label returns the short error label sent for status.
func Label(status int) string {
	if l, ok := labels[status]; ok {
		return l
	}
	return http.StatusText(status)
}

// Handler returns an echo error handler. Rules are tried in order before
// echo's own HTTP errors; anything unmatched is a 500.
func Handler(logger zerolog.Logger, rules ...Rule) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolve(err, rules)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, Response{Status: status, Error: Label(status), Message: msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func resolve(err error, rules []Rule) (int, string) {
	for _, r := range rules {
		if !r.Match(err) {
			continue
		}
		if r.Message != nil {
			return r.Status, r.Message(err)
		}
		return r.Status, err.Error()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, "internal server error"
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	return http.StatusInternalServerError, "internal server error"
}
