package handlers

import (
	"context"
	"time"

	"support-router/models"
)

// Store is the persistence gateway the router depends on. Lookups return
// (nil, nil) when nothing matches.
type Store interface {
	GetCustomerByID(ctx context.Context, psid string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, psid string, update models.CustomerUpdate) (*models.Customer, error)
	PauseCustomer(ctx context.Context, psid, pageID string, at time.Time) (*models.Customer, error)
	AppendSpamLog(ctx context.Context, entry *models.SpamLog) (*models.SpamLog, error)
	AppendQueryLog(ctx context.Context, entry *models.QueryLog) (*models.QueryLog, error)
	RecentSpamLogs(ctx context.Context, psid string, limit int) ([]models.SpamLog, error)
	BrandsByCategory(ctx context.Context, category string) ([]string, error)
}

// EndUserChannel replies to the customer.
type EndUserChannel interface {
	Send(ctx context.Context, recipientID, text string) error
}

// SupportChannel notifies the human support team.
type SupportChannel interface {
	Send(ctx context.Context, text string) error
}

// Intelligence is the AI capability. Every call reports availability
// instead of failing.
type Intelligence interface {
	TryGenerate(ctx context.Context, prompt string) (string, bool)
	TryClassify(ctx context.Context, prompt string, out interface{}) bool
	TryExtract(ctx context.Context, text string) (models.ExtractedFields, bool)
}

// HistoryStore holds onboarding conversations. It is a cache: losing it
// never changes routing decisions.
type HistoryStore interface {
	Load(ctx context.Context, psid string) ([]models.Turn, error)
	Append(ctx context.Context, psid string, turns ...models.Turn) error
	Clear(ctx context.Context, psid string) error
}

// OutcomeFeed receives every routing result.
type OutcomeFeed interface {
	Publish(result models.RoutingResult)
}

// Locker serializes work per customer.
type Locker interface {
	Lock(key string) (unlock func())
}

// BusinessProfile describes the business for AI prompts.
type BusinessProfile struct {
	Name        string
	Description string
}
