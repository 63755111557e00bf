package types

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- query parsing ---

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    []string
		wantErr bool
	}{
		{"single string", "crispr", []string{"crispr"}, false},
		{"string with padding", "  base editing  ", []string{"base editing"}, false},
		{"empty string", "   ", nil, true},
		{"string list", []string{"crispr", "cas9"}, []string{"crispr", "cas9"}, false},
		{"any list", []any{"crispr", "cas9"}, []string{"crispr", "cas9"}, false},
		{"list with blanks", []any{" crispr ", "", "  "}, []string{"crispr"}, false},
		{"all blank list", []string{"", "  "}, nil, true},
		{"non-string element", []any{"crispr", 42}, nil, true},
		{"nil", nil, nil, true},
		{"wrong type", 7, nil, true},
	}

	for _, tt := range tests {
		got, err := ParseQuery(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %v", tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

// --- search window ---

func TestWindow(t *testing.T) {
	now := time.Date(2025, 8, 25, 7, 0, 0, 0, time.UTC)

	from, to := SearchConfig{DaysToCheck: 3}.Window(now)
	if !to.Equal(now) {
		t.Errorf("to = %v, want %v", to, now)
	}
	if want := now.AddDate(0, 0, -3); !from.Equal(want) {
		t.Errorf("from = %v, want %v", from, want)
	}

	// Zero and negative day counts fall back to the 7-day default.
	for _, days := range []int{0, -1} {
		from, _ := SearchConfig{DaysToCheck: days}.Window(now)
		if want := now.AddDate(0, 0, -7); !from.Equal(want) {
			t.Errorf("days=%d: from = %v, want %v", days, from, want)
		}
	}
}

// --- validation ---

func validConfig() Config {
	return Config{
		Search: SearchConfig{
			Query:           []string{"crispr"},
			DaysToCheck:     7,
			MaxPapersForLLM: 50,
		},
		API: APIConfig{
			Mailto:      "lab@example.org",
			OpenAIAPI:   "sk-test",
			OpenAIURL:   "https://llm.example.org/v1/chat/completions",
			OpenAIModel: "gpt-4o-mini",
			MaxAttempts: 3,
		},
		Email: EmailConfig{
			SMTPServer:     "smtp.example.org",
			SMTPPort:       587,
			SenderEmail:    "bot@example.org",
			SenderPassword: "hunter2",
			RecipientEmail: "reader@example.org",
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing query", func(c *Config) { c.Search.Query = nil }, "search.query"},
		{"negative days", func(c *Config) { c.Search.DaysToCheck = -1 }, "days_to_check"},
		{"negative cap", func(c *Config) { c.Search.MaxPapersForLLM = -1 }, "max_papers_for_llm"},
		{"missing mailto", func(c *Config) { c.API.Mailto = "" }, "mailto"},
		{"zero attempts", func(c *Config) { c.API.MaxAttempts = 0 }, "max_attempts"},
		{"enrichment without url", func(c *Config) { c.API.OpenAIURL = "" }, "openai_url"},
		{"enrichment without model", func(c *Config) { c.API.OpenAIModel = "" }, "openai_model"},
		{"enrichment without key", func(c *Config) { c.API.OpenAIAPI = "" }, "openai_api"},
	}

	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: err = %v, want mention of %s", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateSkipsLLMKeysWhenOptedOut(t *testing.T) {
	cfg := validConfig()
	cfg.Search.MaxPapersForLLM = 0
	cfg.API.OpenAIAPI = ""
	cfg.API.OpenAIURL = ""
	cfg.API.OpenAIModel = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("opt-out config rejected: %v", err)
	}
}

func TestValidateDelivery(t *testing.T) {
	if err := validConfig().ValidateDelivery(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing server", func(c *Config) { c.Email.SMTPServer = "" }, "smtp_server"},
		{"missing sender", func(c *Config) { c.Email.SenderEmail = "" }, "sender_email"},
		{"missing password", func(c *Config) { c.Email.SenderPassword = "" }, "sender_password"},
		{"missing recipient", func(c *Config) { c.Email.RecipientEmail = "" }, "recipient_email"},
	}

	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		err := cfg.ValidateDelivery()
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: err = %v, want mention of %s", tt.name, err, tt.wantErr)
		}
	}
}
