package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorBody{Error: msg, Code: code})
}

// RespondAPIError writes err using its apierr status when it has one and a
// generic 500 otherwise. Internal error text never reaches the client.
func RespondAPIError(c *gin.Context, err error, fallbackMsg string) {
	if ae, ok := apierr.As(err); ok {
		msg := ae.Error()
		if ae.Err == nil {
			msg = fallbackMsg
		}
		c.JSON(ae.Status, ErrorBody{Error: msg, Code: ae.Code, Details: ae.Details})
		return
	}
	if err != nil {
		_ = c.Error(err)
	}
	if fallbackMsg == "" {
		fallbackMsg = "An unexpected error occurred. Please try again."
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: fallbackMsg, Code: apierr.CodeInternal})
}

func AbortAPIError(c *gin.Context, err error) {
	RespondAPIError(c, err, "")
	c.Abort()
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
