package xerr

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// CodeError carries a business code across component boundaries. It
// implements the error interface and unwraps to the underlying cause.
type CodeError struct {
	Code int
	Err  error
}

func (e *CodeError) Error() string {
	return e.Err.Error()
}

func (e *CodeError) Unwrap() error {
	return e.Err
}

// NewCodeError creates a CodeError instance.
func NewCodeError(code int, err error) *CodeError {
	return &CodeError{Code: code, Err: err}
}

// CodeOf extracts the business code from err, or InternalServerErrorCode
// when err carries none.
func CodeOf(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return InternalServerErrorCode
}

// Response is the JSON envelope used on every endpoint.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// JSONResponse sends a standard JSON response.
func JSONResponse(c *gin.Context, httpStatus int, code int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success sends a success envelope.
func Success(c *gin.Context, httpStatus int, message string, data any) {
	JSONResponse(c, httpStatus, SuccessCode, message, data)
}

// Error sends an error envelope.
func Error(c *gin.Context, httpStatus int, code int, message string) {
	JSONResponse(c, httpStatus, code, message, nil)
}

// AbortWithError sends an error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort()
}
