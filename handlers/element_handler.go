package handlers

import (
	"net/http"

	"elementduel/services"

	"github.com/gin-gonic/gin"
)

// ElementHandler serves the static periodic-table reference data.
type ElementHandler struct{}

func NewElementHandler() *ElementHandler {
	return &ElementHandler{}
}

func (h *ElementHandler) ListElements(c *gin.Context) {
	c.JSON(http.StatusOK, services.Elements())
}
