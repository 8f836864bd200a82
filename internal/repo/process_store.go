package repo

import (
	"context"

	"github.com/richardliu001/onboarding-service/internal/model"
)

// CreateProcessInstance inserts a new execution pointer.
func (r *Repository) CreateProcessInstance(ctx context.Context, p *model.ProcessInstance) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

// GetProcessInstance loads an execution pointer by id.
func (r *Repository) GetProcessInstance(ctx context.Context, id string) (*model.ProcessInstance, error) {
	var p model.ProcessInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SaveProcessInstance persists state, position and variables.
func (r *Repository) SaveProcessInstance(ctx context.Context, p *model.ProcessInstance) error {
	return translate(r.db.WithContext(ctx).Save(p).Error)
}
