// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
)

// assessPromptTmpl is the prompt sent to the chat-completion API for each
// paper. It asks for the summary and the relevance rating in a single JSON
// response so one request covers both.
var assessPromptTmpl = template.Must(template.New("assess").Parse(`You are a scientific literature screener. Read the abstract below, then do two things:

1. Summarize the abstract as 3 to 5 concise bullet points. Each point must be a single sentence capturing essential information.
2. Rate the paper's relevance as a whole number on a scale of 0-10 where:
   - 0: completely unrelated
   - 1-3: minimally related (tangential connection)
   - 4-6: moderately related (some overlap in topics or methods)
   - 7-9: highly related (direct relevance)
   - 10: perfectly aligned
{{if .Interests}}Rate relevance against the researcher's interests and the search query.

Researcher interests: {{.Interests}}
{{else}}Rate relevance against the search query.
{{end}}
Search query: {{.Query}}

Respond with a JSON object of the form {"summary": ["point 1", "point 2", "point 3"], "relevance": 7} and no additional text.

Title: {{.Title}}
Abstract: {{.Abstract}}
`))

// defaultOpenAIURL is used when the configuration leaves api.openai_url empty.
const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIBackend calls an OpenAI-compatible chat-completions endpoint. BaseURL
// may point at any compatible server (a proxy, a local model, an httptest
// server in tests).
type OpenAIBackend struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// Assess sends one paper to the model and parses the JSON verdict.
func (b *OpenAIBackend) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := openaiRequest{
		Model: b.Model,
		Messages: []openaiMessage{
			{Role: "user", Content: prompt},
		},
		ResponseFormat: openaiResponseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Assessment{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := b.BaseURL
	if endpoint == "" {
		endpoint = defaultOpenAIURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return Assessment{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Assessment{}, fmt.Errorf("calling model API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Assessment{}, fmt.Errorf("model API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Assessment{}, fmt.Errorf("decoding model response: %w", err)
	}

	if len(cResp.Choices) == 0 {
		return Assessment{}, fmt.Errorf("model API returned no choices")
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(cResp.Choices[0].Message.Content), &assessment); err != nil {
		return Assessment{}, fmt.Errorf("parsing assessment JSON: %w", err)
	}
	return assessment, nil
}

// renderPrompt executes the assessment prompt template for one paper.
func renderPrompt(req AssessRequest) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Title     string
		Abstract  string
		Query     string
		Interests string
	}{
		Title:     req.Title,
		Abstract:  req.Abstract,
		Query:     strings.Join(req.Query, ", "),
		Interests: req.Interests,
	}
	if err := assessPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Chat-completions API request and response structures.
type openaiRequest struct {
	Model          string               `json:"model"`
	Messages       []openaiMessage      `json:"messages"`
	ResponseFormat openaiResponseFormat `json:"response_format"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}
