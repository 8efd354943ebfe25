package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"support-router/logger"
	"support-router/models"
)

// PostgresStore is the relational persistence gateway. It uses the
// customers, spam_logs, query_logs and brands tables.
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgresStore wraps an open gorm connection.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres connects with retry and optionally migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, autoMigrate bool, maxWait time.Duration) (*gorm.DB, error) {
	var db *gorm.DB

	open := func() error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                 gormLogger.Default.LogMode(gormLogger.Warn),
			SkipDefaultTransaction: true,
		})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		db = conn
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	notify := func(err error, next time.Duration) {
		logger.Log.Warn("Postgres not reachable, retrying", zap.Error(err), zap.Duration("next", next))
	}
	if err := backoff.RetryNotify(open, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&models.Customer{}, &models.SpamLog{}, &models.QueryLog{}, &models.Brand{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Log.Info("Postgres schema migrated")
	}

	logger.Log.Info("Connected to Postgres")
	return db, nil
}

func (s *PostgresStore) GetCustomerByID(ctx context.Context, psid string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Where("psid = ?", psid).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer, nil
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	now := s.now()
	created := *customer
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, psid string, update models.CustomerUpdate) (*models.Customer, error) {
	fields := update.Fields()
	fields["updated_at"] = s.now()

	result := s.db.WithContext(ctx).Model(&models.Customer{}).Where("psid = ?", psid).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("update customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetCustomerByID(ctx, psid)
}

func (s *PostgresStore) PauseCustomer(ctx context.Context, psid, pageID string, at time.Time) (*models.Customer, error) {
	now := s.now()
	customer := models.Customer{
		PSID:             psid,
		PageID:           pageID,
		AIPaused:         true,
		LastHumanReplyAt: &at,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "psid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"ai_paused":           true,
			"last_human_reply_at": at,
			"updated_at":          now,
		}),
	}).Create(&customer).Error
	if err != nil {
		return nil, fmt.Errorf("pause customer: %w", err)
	}
	return s.GetCustomerByID(ctx, psid)
}

func (s *PostgresStore) AppendSpamLog(ctx context.Context, entry *models.SpamLog) (*models.SpamLog, error) {
	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()

	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, fmt.Errorf("append spam log: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) AppendQueryLog(ctx context.Context, entry *models.QueryLog) (*models.QueryLog, error) {
	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()

	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, fmt.Errorf("append query log: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) RecentSpamLogs(ctx context.Context, psid string, limit int) ([]models.SpamLog, error) {
	var logs []models.SpamLog
	err := s.db.WithContext(ctx).
		Where("psid = ?", psid).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("recent spam logs: %w", err)
	}
	return logs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *PostgresStore) BrandsByCategory(ctx context.Context, category string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.Brand{}).
		Where("category ILIKE ?", "%"+likeEscaper.Replace(category)+"%").
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("brands by category: %w", err)
	}
	return names, nil
}
