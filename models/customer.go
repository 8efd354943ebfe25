package models

import (
	"strings"
	"time"
)

// Customer is the persisted record for one end user, keyed by their
// page-scoped id.
type Customer struct {
	PSID             string     `bson:"psid" json:"psid" gorm:"column:psid;primaryKey"`
	Name             string     `bson:"name,omitempty" json:"name,omitempty" gorm:"column:name"`
	Phone            string     `bson:"phone,omitempty" json:"phone,omitempty" gorm:"column:phone"`
	Email            string     `bson:"email,omitempty" json:"email,omitempty" gorm:"column:email"`
	Inquiry          string     `bson:"inquiry,omitempty" json:"inquiry,omitempty" gorm:"column:inquiry"`
	PageID           string     `bson:"page_id,omitempty" json:"page_id,omitempty" gorm:"column:page_id"`
	FirstMessage     string     `bson:"first_message,omitempty" json:"first_message,omitempty" gorm:"column:first_message"`
	AIPaused         bool       `bson:"ai_paused" json:"ai_paused" gorm:"column:ai_paused"`
	LastHumanReplyAt *time.Time `bson:"last_human_reply_at,omitempty" json:"last_human_reply_at,omitempty" gorm:"column:last_human_reply_at"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at" gorm:"column:updated_at"`
}

func (Customer) TableName() string { return "customers" }

// IsOnboarded reports whether both name and phone are known.
func (c *Customer) IsOnboarded() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Phone) != ""
}

// SupportInitiated is true when the record was created by a human agent
// reaching out first, so there is no first inbound message.
func (c *Customer) SupportInitiated() bool {
	return c.FirstMessage == ""
}

// CustomerUpdate is a partial update; nil fields are left untouched.
type CustomerUpdate struct {
	Name             *string
	Phone            *string
	Email            *string
	Inquiry          *string
	AIPaused         *bool
	LastHumanReplyAt *time.Time
}

// IsEmpty reports whether the update would change nothing.
func (u CustomerUpdate) IsEmpty() bool {
	return u.Name == nil && u.Phone == nil && u.Email == nil && u.Inquiry == nil &&
		u.AIPaused == nil && u.LastHumanReplyAt == nil
}

// Fields flattens the update into column/field names. Both stores share
// the same names.
func (u CustomerUpdate) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Phone != nil {
		fields["phone"] = *u.Phone
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.Inquiry != nil {
		fields["inquiry"] = *u.Inquiry
	}
	if u.AIPaused != nil {
		fields["ai_paused"] = *u.AIPaused
	}
	if u.LastHumanReplyAt != nil {
		fields["last_human_reply_at"] = *u.LastHumanReplyAt
	}
	return fields
}

// PauseUpdate marks a customer as taken over by a human at the given time.
func PauseUpdate(at time.Time) CustomerUpdate {
	paused := true
	return CustomerUpdate{AIPaused: &paused, LastHumanReplyAt: &at}
}

// ResumeUpdate hands the conversation back to the AI.
func ResumeUpdate() CustomerUpdate {
	paused := false
	return CustomerUpdate{AIPaused: &paused}
}
