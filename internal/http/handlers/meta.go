package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Meta describes the running build and the financing policy it enforces, so
// simulators can mirror the down payment floor before calling /v1/quotes.
type Meta struct {
	Env                 string
	Version             string
	Commit              string
	MinDownPaymentRatio string
}

type MetaHandler struct {
	meta Meta
}

func NewMetaHandler(meta Meta) *MetaHandler {
	return &MetaHandler{meta: meta}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "CarMarket Credit API",
		"version": h.meta.Version,
		"commit":  h.meta.Commit,
		"env":     h.meta.Env,
		"policy": gin.H{
			"minDownPaymentRatio": h.meta.MinDownPaymentRatio,
		},
	})
}
