package models

import "time"

// SpamLog records one message classified as spam.
type SpamLog struct {
	ID         string    `bson:"_id" json:"id" gorm:"column:id;primaryKey"`
	PSID       string    `bson:"psid" json:"psid" gorm:"column:psid;index"`
	Message    string    `bson:"message" json:"message" gorm:"column:message"`
	Reason     string    `bson:"reason" json:"reason" gorm:"column:reason"`
	Confidence float64   `bson:"confidence" json:"confidence" gorm:"column:confidence"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at" gorm:"column:created_at;index"`
}

func (SpamLog) TableName() string { return "spam_logs" }

// QueryLog records the classification of every inbound text message.
type QueryLog struct {
	ID              string    `bson:"_id" json:"id" gorm:"column:id;primaryKey"`
	PSID            string    `bson:"psid" json:"psid" gorm:"column:psid;index"`
	Message         string    `bson:"message" json:"message" gorm:"column:message"`
	Category        string    `bson:"category" json:"category" gorm:"column:category"`
	IsSpam          bool      `bson:"is_spam" json:"is_spam" gorm:"column:is_spam"`
	NeedsEscalation bool      `bson:"needs_escalation" json:"needs_escalation" gorm:"column:needs_escalation"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at" gorm:"column:created_at"`
}

func (QueryLog) TableName() string { return "query_logs" }

// Brand is a read-only catalogue entry.
type Brand struct {
	Name     string `bson:"name" json:"name" gorm:"column:name;primaryKey"`
	Category string `bson:"category" json:"category" gorm:"column:category;index"`
}

func (Brand) TableName() string { return "brands" }
