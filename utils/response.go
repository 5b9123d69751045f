package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filevault/apperr"
)

// APIResponse is the envelope every JSON endpoint answers with. Data carries
// the payload on success; ErrorMsg carries the user-facing failure text.
type APIResponse struct {
	Data     interface{} `json:"data,omitempty"`
	ErrorMsg interface{} `json:"errorMsg,omitempty"`
	Msg      string      `json:"msg,omitempty"`
}

func DataResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Data: data})
}

func MessageResponse(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, APIResponse{Msg: msg})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Data: data})
}

// FailureResponse maps a service error onto the envelope. Validation failures
// with structured details expose them alongside the message.
func FailureResponse(c *gin.Context, err error) {
	body := APIResponse{ErrorMsg: apperr.Message(err)}
	if details := apperr.Details(err); details != nil {
		body.ErrorMsg = gin.H{"message": apperr.Message(err), "details": details}
	}
	c.JSON(apperr.Status(err), body)
}

func BadRequestResponse(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIResponse{ErrorMsg: message})
}

func UnauthorizedResponse(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, APIResponse{ErrorMsg: message})
}
