package ingest

import (
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no brokers", func(c *Config) { c.Brokers = nil }, true},
		{"empty topic", func(c *Config) { c.Topic = "" }, true},
		{"empty group", func(c *Config) { c.ConsumerGroup = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConsumerRequiresEngine(t *testing.T) {
	if _, err := NewConsumer(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error when engine is nil")
	}
}
