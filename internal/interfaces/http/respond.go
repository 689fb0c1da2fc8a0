package httpinterface

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/obyte-network/obw-daemon/internal/core/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// respondError maps coded domain errors onto the wire: 401 for
// NOT_AUTHORIZED and UPGRADE_NEEDED, 400 for any other client error, 500
// otherwise.
func respondError(c *gin.Context, err error) {
	var coded *domain.Error
	if errors.As(err, &coded) {
		status := http.StatusBadRequest
		if coded.Code == "NOT_AUTHORIZED" || coded.Code == "UPGRADE_NEEDED" {
			status = http.StatusUnauthorized
		}
		log.Infof("request failed: %s (%s)", coded.Message, coded.Code)
		c.AbortWithStatusJSON(status, errorBody{Code: coded.Code, Message: coded.Message})
		return
	}
	log.WithError(err).Error("internal error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	})
}
