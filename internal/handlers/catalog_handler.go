package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// CategoryTreeStore reads the materialized category tree
type CategoryTreeStore interface {
	GetCategoryTree(ctx context.Context) ([]models.Category, error)
}

type CatalogHandler struct {
	catalog CategoryTreeStore
	log     *logrus.Entry
}

func NewCatalogHandler(catalog CategoryTreeStore, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		log:     logrus.NewEntry(logger).WithField("component", "catalog_handler"),
	}
}

// GetCategoryTree returns the materialized category tree, ordered by path
// GET /api/v1/catalog/categories/tree
func (h *CatalogHandler) GetCategoryTree(c *gin.Context) {
	categories, err := h.catalog.GetCategoryTree(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to load category tree")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to load category tree"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}
