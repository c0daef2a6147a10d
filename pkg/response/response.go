package response

import (
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every REST endpoint answers with.
type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Envelope is APIResponse with a typed payload, for clients decoding it.
type Envelope[T any] struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      T         `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func SendAPIResponse(c *gin.Context, code int, success bool, message string, data any) {
	resp := APIResponse{
		Success:   success,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now(),
	}

	c.JSON(code, resp)
}

// SendError answers with a failed envelope and no payload.
func SendError(c *gin.Context, code int, message string) {
	SendAPIResponse(c, code, false, message, nil)
}

// Abort is SendError for middleware: the handler chain stops here.
func Abort(c *gin.Context, code int, message string) {
	SendError(c, code, message)
	c.Abort()
}
