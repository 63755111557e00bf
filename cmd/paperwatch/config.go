package main

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/enrich"
	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/internal/source"
	"github.com/pdiddy/paperwatch/pkg/types"
)

func setDefaults() {
	viper.SetDefault("search.days_to_check", 7)
	viper.SetDefault("search.max_papers_for_llm", 50)
	viper.SetDefault("api.max_attempts", 3)
	viper.SetDefault("api.ssl_verify", true)
	viper.SetDefault("api.concurrency", 4)
	viper.SetDefault("api.openai_url", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.subject_prefix", "PaperWatch")
	viper.SetDefault("backup.dir", "backup")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

// loadConfig reads every key out of viper into the config struct. The query
// is canonicalized here, so downstream code always sees a list of terms.
func loadConfig() (types.Config, error) {
	setDefaults()

	query, err := types.ParseQuery(viper.Get("search.query"))
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Config{
		Search: types.SearchConfig{
			Query:               query,
			ResearcherInterests: viper.GetString("search.researcher_interests"),
			DaysToCheck:         viper.GetInt("search.days_to_check"),
			MaxPapersForLLM:     viper.GetInt("search.max_papers_for_llm"),
		},
		API: types.APIConfig{
			Mailto:         viper.GetString("api.mailto"),
			OpenAIAPI:      viper.GetString("api.openai_api"),
			OpenAIURL:      viper.GetString("api.openai_url"),
			OpenAIModel:    viper.GetString("api.openai_model"),
			MaxAttempts:    viper.GetInt("api.max_attempts"),
			SSLVerify:      viper.GetBool("api.ssl_verify"),
			EnableSpringer: viper.GetBool("api.enable_springer"),
			SpringerAPIKey: viper.GetString("api.springer_api_key"),
			Concurrency:    viper.GetInt("api.concurrency"),
		},
		Email: types.EmailConfig{
			SMTPServer:     viper.GetString("email.smtp_server"),
			SMTPPort:       viper.GetInt("email.smtp_port"),
			SenderEmail:    viper.GetString("email.sender_email"),
			SenderPassword: viper.GetString("email.sender_password"),
			RecipientEmail: viper.GetString("email.recipient_email"),
			SubjectPrefix:  viper.GetString("email.subject_prefix"),
		},
		Backup: types.BackupConfig{
			Dir: viper.GetString("backup.dir"),
		},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}
	return cfg, nil
}

// newHTTPClient builds the paced client shared by the source adapters.
func newHTTPClient(cfg types.Config) *httputil.Client {
	return httputil.NewClient(httputil.ClientConfig{
		MaxAttempts:        cfg.API.MaxAttempts,
		UserAgent:          "paperwatch/" + version,
		InsecureSkipVerify: !cfg.API.SSLVerify,
	})
}

func buildAdapters(cfg types.Config, client *httputil.Client, log zerolog.Logger) []source.Adapter {
	adapters := []source.Adapter{
		&source.CrossRefAdapter{Client: client, Mailto: cfg.API.Mailto, Log: log},
	}
	if cfg.API.EnableSpringer {
		adapters = append(adapters, &source.SpringerAdapter{Client: client, APIKey: cfg.API.SpringerAPIKey, Log: log})
	}
	return adapters
}

func buildBackend(cfg types.Config) enrich.AIBackend {
	httpClient := &http.Client{Timeout: 120 * time.Second}
	if !cfg.API.SSLVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		httpClient.Transport = t
	}
	return &enrich.OpenAIBackend{
		BaseURL: cfg.API.OpenAIURL,
		APIKey:  cfg.API.OpenAIAPI,
		Model:   cfg.API.OpenAIModel,
		Client:  httpClient,
	}
}
