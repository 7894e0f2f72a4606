package schema

import (
	"strings"
	"testing"
	"time"
)

func validEvent() *ActivityEvent {
	return &ActivityEvent{
		UserID:    "user-1",
		Username:  "alice",
		IPAddress: "10.0.0.5",
		UserAgent: "Mozilla/5.0",
		Resource:  "/api/reports",
		Action:    "read",
		Category:  CategoryDataAccess,
		Timestamp: time.Now().UTC(),
	}
}

func TestValidateAcceptsWellFormedEvent(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(validEvent()); err != nil {
		t.Errorf("expected valid event to pass, got: %v", err)
	}
}

func TestValidateRejectsMalformedEvents(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*ActivityEvent)
	}{
		{"missing ip", func(e *ActivityEvent) { e.IPAddress = "" }},
		{"bad ip", func(e *ActivityEvent) { e.IPAddress = "not-an-ip" }},
		{"missing category", func(e *ActivityEvent) { e.Category = "" }},
		{"bad category format", func(e *ActivityEvent) { e.Category = "Login.Failed" }},
		{"unknown category", func(e *ActivityEvent) { e.Category = "session.hijack" }},
		{"zero timestamp", func(e *ActivityEvent) { e.Timestamp = time.Time{} }},
		{"timestamp too old", func(e *ActivityEvent) { e.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour) }},
		{"timestamp in future", func(e *ActivityEvent) { e.Timestamp = time.Now().UTC().Add(10 * time.Minute) }},
		{"oversized username", func(e *ActivityEvent) { e.Username = strings.Repeat("a", 300) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)
			if err := v.Validate(event); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAllowsAnonymousEvents(t *testing.T) {
	v := NewValidator()

	event := validEvent()
	event.UserID = ""
	event.Username = ""
	event.Category = CategoryLoginFailed

	if err := v.Validate(event); err != nil {
		t.Errorf("anonymous pre-auth event should pass, got: %v", err)
	}
	if !event.Anonymous() {
		t.Error("event without user id should report anonymous")
	}
}

func TestValidatorConfigBounds(t *testing.T) {
	v := NewValidatorWithConfig(ValidatorConfig{
		MaxAge:    time.Hour,
		MaxFuture: time.Minute,
	})

	event := validEvent()
	event.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	if err := v.Validate(event); err == nil {
		t.Error("expected error for event older than configured max age")
	}

	event = validEvent()
	event.Timestamp = time.Now().UTC().Add(30 * time.Second)
	if err := v.Validate(event); err != nil {
		t.Errorf("small clock skew within max future should pass, got: %v", err)
	}
}

func TestCategoryIsValid(t *testing.T) {
	valid := []Category{
		CategoryLoginSuccess, CategoryLoginFailed, CategoryLogout,
		CategoryDataAccess, CategoryResourceAccess,
		CategoryPrivilegedAction, CategoryConfigChange,
	}
	for _, c := range valid {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Category("file.upload").IsValid() {
		t.Error("unknown category should be invalid")
	}
}
