package types

import (
	"fmt"
	"strings"
	"time"
)

// SearchConfig holds settings for what to search and how much to enrich.
type SearchConfig struct {
	// Query is the canonical list of search terms. The config file accepts
	// either a single string or a list; ParseQuery resolves both forms to
	// this list at load time, so downstream code only ever sees the list.
	Query []string `json:"query" yaml:"query"`

	// ResearcherInterests is an optional free-text description of the
	// researcher's interests, folded into the relevance prompt and echoed
	// in the report footer.
	ResearcherInterests string `json:"researcher_interests,omitempty" yaml:"researcher_interests,omitempty"`

	// DaysToCheck is the trailing window length in days (default 7).
	DaysToCheck int `json:"days_to_check" yaml:"days_to_check"`

	// MaxPapersForLLM caps how many merged papers may be enriched. When
	// the merged count exceeds a nonzero cap, enrichment is skipped and
	// the rate-limited report is sent. Zero opts out of enrichment
	// entirely.
	MaxPapersForLLM int `json:"max_papers_for_llm" yaml:"max_papers_for_llm"`
}

// Window returns the trailing search window [from, to] ending at now.
func (c SearchConfig) Window(now time.Time) (from, to time.Time) {
	days := c.DaysToCheck
	if days <= 0 {
		days = 7
	}
	to = now
	from = now.AddDate(0, 0, -days)
	return from, to
}

// APIConfig holds settings for the outbound HTTP APIs.
type APIConfig struct {
	// Mailto is the contact address sent to CrossRef for polite-pool access.
	Mailto string `json:"mailto" yaml:"mailto"`

	// OpenAIAPI is the API key for the OpenAI-compatible endpoint.
	OpenAIAPI string `json:"openai_api,omitempty" yaml:"openai_api,omitempty"`

	// OpenAIURL is the base URL of the OpenAI-compatible endpoint.
	OpenAIURL string `json:"openai_url,omitempty" yaml:"openai_url,omitempty"`

	// OpenAIModel is the model identifier for enrichment requests.
	OpenAIModel string `json:"openai_model,omitempty" yaml:"openai_model,omitempty"`

	// MaxAttempts is the attempt count for source and enrichment calls
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// SSLVerify disables TLS certificate verification when false, for
	// self-hosted gateways behind private CAs.
	SSLVerify bool `json:"ssl_verify" yaml:"ssl_verify"`

	// EnableSpringer controls whether the Springer adapter runs.
	EnableSpringer bool `json:"enable_springer" yaml:"enable_springer"`

	// SpringerAPIKey authenticates Springer requests. Empty disables the
	// adapter even when EnableSpringer is set.
	SpringerAPIKey string `json:"springer_api_key,omitempty" yaml:"springer_api_key,omitempty"`

	// Concurrency bounds the enrichment fan-out (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	SMTPServer     string `json:"smtp_server" yaml:"smtp_server"`
	SMTPPort       int    `json:"smtp_port" yaml:"smtp_port"`
	SenderEmail    string `json:"sender_email" yaml:"sender_email"`
	SenderPassword string `json:"-" yaml:"-"`
	RecipientEmail string `json:"recipient_email" yaml:"recipient_email"`
	SubjectPrefix  string `json:"subject_prefix" yaml:"subject_prefix"`
}

// BackupConfig holds settings for the run-snapshot backup.
type BackupConfig struct {
	// Dir is the directory that receives the snapshot database and the
	// per-run YAML file (default "backup").
	Dir string `json:"dir" yaml:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config groups all settings for one paperwatch run. It is constructed once
// at startup and passed into components; nothing reads configuration
// ambiently after load.
type Config struct {
	Search SearchConfig `json:"search" yaml:"search"`
	API    APIConfig    `json:"api" yaml:"api"`
	Email  EmailConfig  `json:"email" yaml:"email"`
	Backup BackupConfig `json:"backup" yaml:"backup"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// ParseQuery canonicalizes the search.query config value. A single string
// becomes a one-term list; a list of strings is taken as-is. Terms are
// trimmed and blank terms rejected.
func ParseQuery(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("search.query is not set")
	case string:
		t := strings.TrimSpace(v)
		if t == "" {
			return nil, fmt.Errorf("search.query is empty")
		}
		return []string{t}, nil
	case []string:
		return cleanTerms(v)
	case []any:
		terms := make([]string, 0, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("search.query[%d]: expected string, got %T", i, e)
			}
			terms = append(terms, s)
		}
		return cleanTerms(terms)
	default:
		return nil, fmt.Errorf("search.query: expected string or list of strings, got %T", raw)
	}
}

func cleanTerms(terms []string) ([]string, error) {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("search.query is empty")
	}
	return out, nil
}

// Validate checks the settings every command needs before any network
// call. Delivery settings are checked separately by ValidateDelivery so
// fetch-only commands do not require an email block.
func (c Config) Validate() error {
	if len(c.Search.Query) == 0 {
		return fmt.Errorf("search.query is required")
	}
	if c.Search.DaysToCheck < 0 {
		return fmt.Errorf("search.days_to_check must not be negative")
	}
	if c.Search.MaxPapersForLLM < 0 {
		return fmt.Errorf("search.max_papers_for_llm must not be negative")
	}
	if c.API.Mailto == "" {
		return fmt.Errorf("api.mailto is required for CrossRef access")
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1")
	}
	if c.Search.MaxPapersForLLM > 0 {
		switch {
		case c.API.OpenAIURL == "":
			return fmt.Errorf("api.openai_url is required when enrichment is enabled")
		case c.API.OpenAIModel == "":
			return fmt.Errorf("api.openai_model is required when enrichment is enabled")
		case c.API.OpenAIAPI == "":
			return fmt.Errorf("api.openai_api is required when enrichment is enabled")
		}
	}
	return nil
}

// ValidateDelivery checks the settings needed to send the report.
func (c Config) ValidateDelivery() error {
	switch {
	case c.Email.SMTPServer == "":
		return fmt.Errorf("email.smtp_server is required")
	case c.Email.SenderEmail == "":
		return fmt.Errorf("email.sender_email is required")
	case c.Email.SenderPassword == "":
		return fmt.Errorf("email.sender_password is required")
	case c.Email.RecipientEmail == "":
		return fmt.Errorf("email.recipient_email is required")
	}
	return nil
}
