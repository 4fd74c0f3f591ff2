package errcodes

import (
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
)

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type errorPayload struct {
	Error errorBody `json:"error"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is the echo error handler. Errors from this package and echo keep
// their status; anything else becomes a 500 whose details are only logged.
func (h *Handler) Handle(err error, c echo.Context) {
	log := logger.FromEchoContext(c)

	if errutils.IsIgnorableErr(err) {
		log.Err(err).Warn("broken pipe")
		return
	}

	payload := toPayload(err)
	if payload.Error.StatusCode >= http.StatusInternalServerError {
		log.Err(err).Error("server error")
	}

	if c.Response().Committed {
		return
	}
	if err := c.JSON(payload.Error.StatusCode, payload); err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func toPayload(err error) errorPayload {
	var e *Error
	if errors.As(err, &e) {
		return errorPayload{errorBody{e.Code, e.Message, e.HTTPCode}}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := fmt.Sprint(he.Message)
		if m, ok := he.Message.(error); ok {
			msg = m.Error()
		}
		return errorPayload{errorBody{strcase.ToSnake(msg), msg, he.Code}}
	}

	return errorPayload{errorBody{"internal_server_error", "Internal Server Error", http.StatusInternalServerError}}
}
