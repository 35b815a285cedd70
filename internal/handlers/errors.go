package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/waste-classifier/internal/classifier"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse is the status and message an error maps to
type ErrorResponse struct {
	StatusCode int
	Message    string
}

// MapError maps classification errors to HTTP responses. Client input
// problems are 400s with a fixed message; everything else is a 500 carrying
// the error text as is.
func MapError(err error) ErrorResponse {
	switch {
	case errors.Is(err, classifier.ErrNoFile):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "No file uploaded"}
	case errors.Is(err, classifier.ErrNotImage):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "Uploaded file is not an image"}
	case errors.Is(err, classifier.ErrInputSize):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: err.Error()}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
}

func respondError(c *gin.Context, err error) {
	resp := MapError(err)
	c.JSON(resp.StatusCode, ErrorBody{Error: resp.Message})
}
