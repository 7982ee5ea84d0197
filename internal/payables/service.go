// Package payables exposes read and intake operations for the accounts
// payable ledger. Verification against the ledger lives in settlement.
package payables

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/tallyline/tallyline/internal/platform/cache"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

const summaryCacheKey = "payables:summary"
const summaryCacheTTL = 60 * time.Second

// ListFilter narrows payable listings.
type ListFilter struct {
	SupplierID    string
	Status        settlement.VerificationStatus
	PaymentStatus settlement.PaymentStatus
	SourceType    settlement.SourceType
}

// Summary aggregates the ledger for the dashboard.
type Summary struct {
	TotalCount       int                                   `json:"totalCount"`
	TotalAmount      float64                               `json:"totalAmount"`
	VerifiedAmount   float64                               `json:"verifiedAmount"`
	UnverifiedAmount float64                               `json:"unverifiedAmount"`
	ByStatus         map[settlement.VerificationStatus]int `json:"byStatus"`
}

// CreateInput carries a new ledger entry, typically born from a confirmed
// statement or a finalised purchase order.
type CreateInput struct {
	SupplierID   string
	SupplierName string
	SourceType   settlement.SourceType
	SourceID     string
	SourceNo     string
	TotalAmount  float64
	DueDate      string
}

// Repository is the persistence surface for payables.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]settlement.Payable, error)
	Get(ctx context.Context, id string) (*settlement.Payable, error)
	Create(ctx context.Context, p *settlement.Payable) error
	Summarize(ctx context.Context) (*Summary, error)
}

// Service answers payable queries, caching the summary in Redis.
type Service struct {
	repo   Repository
	redis  *redis.Client
	logger *slog.Logger
	group  singleflight.Group

	now   func() time.Time
	newID func() string
}

// NewService builds the payables service. The Redis client may be nil, in
// which case summaries are computed on every call.
func NewService(repo Repository, redisClient *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// List returns payables matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]settlement.Payable, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one payable.
func (s *Service) Get(ctx context.Context, id string) (*settlement.Payable, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("payable %s: %w", id, err)
	}
	return p, nil
}

// Create registers a new ledger entry with all balances unverified.
func (s *Service) Create(ctx context.Context, in CreateInput) (*settlement.Payable, error) {
	now := s.now()
	p := &settlement.Payable{
		ID:               s.newID(),
		PayableNo:        shared.DocNumber(shared.DocPrefixPayable, now),
		SupplierID:       in.SupplierID,
		SupplierName:     in.SupplierName,
		SourceType:       in.SourceType,
		SourceID:         in.SourceID,
		SourceNo:         in.SourceNo,
		TotalAmount:      in.TotalAmount,
		UnpaidAmount:     in.TotalAmount,
		PaymentStatus:    settlement.PaymentUnpaid,
		UnverifiedAmount: in.TotalAmount,
		Status:           settlement.StatusUnverified,
		DueDate:          in.DueDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx)
	return p, nil
}

// Summary returns the ledger aggregate, served from Redis when fresh.
// Concurrent cache misses collapse into a single database scan.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if s.redis != nil {
		var cached Summary
		err := cache.GetJSON(ctx, s.redis, summaryCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if err != cache.ErrMiss {
			s.logger.Warn("summary cache read failed", slog.Any("error", err))
		}
	}
	v, err, _ := s.group.Do(summaryCacheKey, func() (any, error) {
		summary, err := s.repo.Summarize(ctx)
		if err != nil {
			return nil, err
		}
		if s.redis != nil {
			if err := cache.SetJSON(ctx, s.redis, summaryCacheKey, summary, summaryCacheTTL); err != nil {
				s.logger.Warn("summary cache write failed", slog.Any("error", err))
			}
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryCacheKey).Err(); err != nil {
		s.logger.Warn("summary cache invalidation failed", slog.Any("error", err))
	}
}
