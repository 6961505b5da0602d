package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment-service/models"
	"fulfillment-service/repository"
)

// ResultQueryService serves the customer's result rows. Rows are created with
// status pending by the webhook unit of work and filled in by the lab later.
type ResultQueryService struct {
	results repository.TestResultRepository
	log     *zap.Logger
}

func NewResultQueryService(results repository.TestResultRepository, log *zap.Logger) *ResultQueryService {
	return &ResultQueryService{results: results, log: log}
}

func (s *ResultQueryService) ListCustomerResults(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.TestResult, MetaData, error) {
	page, limit = clampPage(page, limit)
	results, total, err := s.results.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		s.log.Error("failed to list results", zap.String("customer_id", customerID.String()), zap.Error(err))
		return nil, MetaData{}, err
	}
	return results, MetaData{Total: total, Page: page, Limit: limit}, nil
}
