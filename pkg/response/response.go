package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorPageName is reported when the configuration could not be loaded
const ErrorPageName = "Error"

// JSON writes body without escaping non-ASCII or HTML characters
func JSON(c *gin.Context, code int, body interface{}) {
	c.PureJSON(code, body)
}

// Success sends a 200 envelope
func Success(c *gin.Context, body interface{}) {
	JSON(c, http.StatusOK, body)
}

// Error sends the failure envelope {success:false, error, pageName, locations:[]}
// merged with the echoed request parameters
func Error(c *gin.Context, code int, message, pageName string, echo map[string]interface{}) {
	body := gin.H{}
	for k, v := range echo {
		body[k] = v
	}
	body["success"] = false
	body["error"] = message
	body["pageName"] = pageName
	body["locations"] = []struct{}{}
	JSON(c, code, body)
}

// InternalError sends a 500 failure envelope
func InternalError(c *gin.Context, message, pageName string) {
	Error(c, http.StatusInternalServerError, message, pageName, nil)
}
