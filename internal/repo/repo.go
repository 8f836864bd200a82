package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// RepositoryInterface restricts Repo methods so services can be tested with fakes.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	Ping(ctx context.Context) error

	CreateOnboarding(ctx context.Context, o *model.Onboarding) error
	GetOnboarding(ctx context.Context, id string) (*model.Onboarding, error)
	GetOnboardingByProcessInstance(ctx context.Context, processInstanceID string) (*model.Onboarding, error)
	ExistsByNationalID(ctx context.Context, nationalID string) (bool, error)
	SaveOnboarding(ctx context.Context, o *model.Onboarding, events ...*model.OutboxEvent) error

	CreateProcessInstance(ctx context.Context, p *model.ProcessInstance) error
	GetProcessInstance(ctx context.Context, id string) (*model.ProcessInstance, error)
	SaveProcessInstance(ctx context.Context, p *model.ProcessInstance) error

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheStatus(ctx context.Context, processInstanceID string, data []byte) error
	GetCachedStatus(ctx context.Context, processInstanceID string) ([]byte, error)
	InvalidateStatus(ctx context.Context, processInstanceID string)
	AcquireStartLock(ctx context.Context, nationalID string, ttl time.Duration) (bool, error)
	ReleaseStartLock(ctx context.Context, nationalID string)
}

// Repository implements RepositoryInterface on gorm, redis and kafka.
// rdb and writer may be nil; cache and publish calls then degrade to no-ops or errors.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// Models lists every table the service owns, for AutoMigrate.
func Models() []any {
	return []any{&model.Onboarding{}, &model.ProcessInstance{}, &model.OutboxEvent{}}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// Ping checks database and, when configured, redis connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if r.rdb != nil {
		return r.rdb.Ping(ctx).Err()
	}
	return nil
}

// CreateOnboarding inserts a new record.
func (r *Repository) CreateOnboarding(ctx context.Context, o *model.Onboarding) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

// GetOnboarding loads a record by id.
func (r *Repository) GetOnboarding(ctx context.Context, id string) (*model.Onboarding, error) {
	var o model.Onboarding
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// GetOnboardingByProcessInstance loads the record driven by a process instance.
func (r *Repository) GetOnboardingByProcessInstance(ctx context.Context, processInstanceID string) (*model.Onboarding, error) {
	var o model.Onboarding
	err := r.db.WithContext(ctx).Where("process_instance_id = ?", processInstanceID).First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// ExistsByNationalID checks the natural key.
func (r *Repository) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Onboarding{}).Where("national_id = ?", nationalID).Count(&n).Error
	return n > 0, err
}

// SaveOnboarding persists the record together with its outbox events in one transaction.
func (r *Repository) SaveOnboarding(ctx context.Context, o *model.Onboarding, events ...*model.OutboxEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(o).Error; err != nil {
			return err
		}
		for _, evt := range events {
			if err := r.CreateOutboxEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}
	r.InvalidateStatus(ctx, o.ProcessInstanceID)
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
