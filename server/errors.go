package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// errNotFound is returned for IDs the Store does not hold, including
// trainers that were evicted.
var errNotFound = errors.New("trainer not found")

type errorResponse struct {
	Error     string   `json:"error"`
	Hints     []string `json:"hints,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// statusFor maps trainedml errors to HTTP status codes.
func statusFor(err error) int {
	var (
		validation *errors.ValidationError
		value      *errors.ValueError
		unknown    *errors.UnknownModelError
		column     *errors.ColumnNotFoundError
		conversion *errors.TypeConversionError
		dimension  *errors.DimensionError
		download   *errors.DownloadError
		integrity  *errors.IntegrityError
	)
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation),
		errors.As(err, &value),
		errors.As(err, &unknown),
		errors.As(err, &column),
		errors.As(err, &conversion),
		errors.As(err, &dimension),
		errors.Is(err, errors.ErrEmptyData):
		return http.StatusBadRequest
	case errors.As(err, &download), errors.As(err, &integrity):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		Hints:     errors.Hints(err),
		RequestID: c.GetString(ctxRequestID),
	}
	if status == http.StatusInternalServerError {
		requestLogger(c).Error("Request error", err)
		resp.Error = "internal server error"
		resp.Hints = nil
	}
	c.JSON(status, resp)
}
