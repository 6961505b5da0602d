package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "fulfillment-service/common/errors"
	"fulfillment-service/middleware"
	"fulfillment-service/models"
	"fulfillment-service/services"
)

type ResultReader interface {
	ListCustomerResults(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.TestResult, services.MetaData, error)
}

type ResultController struct {
	results ResultReader
}

func NewResultController(results ResultReader) *ResultController {
	return &ResultController{results: results}
}

// GetCustomerResults handles GET /api/customer/results. Read only; result
// rows are written by the lab integration.
func (rc *ResultController) GetCustomerResults(c *gin.Context) {
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	page, limit := parsePaginationParams(c)
	results, meta, err := rc.results.ListCustomerResults(c.Request.Context(), customerID, page, limit)
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.WithMessage("Failed to fetch results").Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "meta": meta})
}
