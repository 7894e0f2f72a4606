// Package schema defines the canonical activity event consumed by the
// detection engine. The host application normalizes every user or network
// action to this structure before submission.
package schema

import (
	"time"
)

// ActivityEvent represents one normalized user or network action.
// Events are immutable once submitted and consumed exactly once.
type ActivityEvent struct {
	// UserID is empty for anonymous / pre-auth activity.
	UserID    string   `json:"user_id,omitempty" validate:"max=256"`
	Username  string   `json:"username,omitempty" validate:"max=256"`
	IPAddress string   `json:"ip_address" validate:"required,ip"`
	UserAgent string   `json:"user_agent,omitempty" validate:"max=1024"`
	Resource  string   `json:"resource,omitempty" validate:"max=1024"`
	Action    string   `json:"action,omitempty" validate:"max=256"`
	Category  Category `json:"category" validate:"required,category_format"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// Anonymous reports whether the event has no attributed principal.
func (e *ActivityEvent) Anonymous() bool {
	return e.UserID == ""
}

// Category classifies an activity event.
type Category string

const (
	CategoryLoginSuccess     Category = "login.success"
	CategoryLoginFailed      Category = "login.failed"
	CategoryLogout           Category = "logout"
	CategoryDataAccess       Category = "data.access"
	CategoryResourceAccess   Category = "resource.access"
	CategoryPrivilegedAction Category = "privileged.action"
	CategoryConfigChange     Category = "config.change"
)

// IsValid checks if the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryLoginSuccess, CategoryLoginFailed, CategoryLogout,
		CategoryDataAccess, CategoryResourceAccess,
		CategoryPrivilegedAction, CategoryConfigChange:
		return true
	}
	return false
}

// ActivityRecord is a stored historical activity row returned by the
// historical-activity collaborator. It mirrors ActivityEvent plus the
// time it was recorded.
type ActivityRecord struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	Category   Category  `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	RecordedAt time.Time `json:"recorded_at"`
}
