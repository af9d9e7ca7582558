package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// CatalogReader lists the farm catalog.
type CatalogReader interface {
	AllProducts(ctx context.Context) ([]models.Product, error)
	AllLots(ctx context.Context) ([]models.CatalogLot, error)
}

// CatalogHandler exposes products, stock and lots for planning clients.
type CatalogHandler struct {
	catalog CatalogReader
	logger  *zap.Logger
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog CatalogReader, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Products lists catalog products with their current stock and price.
func (h *CatalogHandler) Products(c *gin.Context) {
	products, err := h.catalog.AllProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load products", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// Lots lists catalog lots with their census.
func (h *CatalogHandler) Lots(c *gin.Context) {
	lots, err := h.catalog.AllLots(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load lots", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lots": lots})
}
