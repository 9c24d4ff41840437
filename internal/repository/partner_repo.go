package repository

import (
	"context"
	"errors"
	"time"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PartnerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error)
	FindByBillingCode(ctx context.Context, code string) (*model.Partner, error)
	Create(ctx context.Context, p *model.Partner) error
}

type partnerRepo struct{ db *gorm.DB }

func NewPartnerRepository(db *gorm.DB) PartnerRepository { return &partnerRepo{db: db} }

func (r *partnerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	var p model.Partner
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *partnerRepo) FindByBillingCode(ctx context.Context, code string) (*model.Partner, error) {
	var p model.Partner
	if err := r.db.WithContext(ctx).Where("billing_code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *partnerRepo) Create(ctx context.Context, p *model.Partner) error {
	return r.db.WithContext(ctx).Create(p).Error
}

type RateCardRepository interface {
	// FindActive returns the partner's active rate card valid on the given
	// day, or nil when there is none.
	FindActive(ctx context.Context, partnerID uuid.UUID, on time.Time) (*model.RateCard, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.RateCard, error)
	Create(ctx context.Context, rc *model.RateCard) error
}

type rateCardRepo struct{ db *gorm.DB }

func NewRateCardRepository(db *gorm.DB) RateCardRepository { return &rateCardRepo{db: db} }

func (r *rateCardRepo) FindActive(ctx context.Context, partnerID uuid.UUID, on time.Time) (*model.RateCard, error) {
	day := time.Date(on.Year(), on.Month(), on.Day(), 0, 0, 0, 0, time.UTC)
	var rc model.RateCard
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND is_active = ?", partnerID, true).
		Where("valid_from <= ?", day).
		Where("(valid_to IS NULL OR valid_to >= ?)", day).
		Order("valid_from DESC").
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *rateCardRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.RateCard, error) {
	var rc model.RateCard
	if err := r.db.WithContext(ctx).First(&rc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *rateCardRepo) Create(ctx context.Context, rc *model.RateCard) error {
	return r.db.WithContext(ctx).Create(rc).Error
}
