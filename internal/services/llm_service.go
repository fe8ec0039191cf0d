package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

const maxPostingLength = 20000

// PostingSuggestion is what the model could read off a job posting. The client decides
// whether to submit it as a new job.
type PostingSuggestion struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	Note    string `json:"note"`
}

type LLMService struct {
	// Client is nil when no model is configured.
	Client llms.Model
	Logger *zap.Logger
}

func NewLLMService(client llms.Model, logger *zap.Logger) *LLMService {
	return &LLMService{
		Client: client,
		Logger: logger.Named("llm"),
	}
}

// NewGeminiLLMService builds the service on Gemini. An empty key disables extraction.
func NewGeminiLLMService(ctx context.Context, apiKey, model string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, posting extraction disabled")
		return NewLLMService(nil, logger), nil
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewLLMService(llm, logger), nil
}

func (s *LLMService) Enabled() bool { return s != nil && s.Client != nil }

const postingExtractionPrompt = `
You are a job posting reader. Extract the following from the posting below and answer
with a single JSON object and nothing else, no markdown code blocks:

{
    "company": "Name of the hiring company",
    "title": "Job title, e.g. Senior Backend Engineer",
    "note": "Two or three sentences on responsibilities, location and stack"
}

Use an empty string for anything the posting does not state. Do not guess.

### POSTING:
%s
`

// ExtractPosting asks the model for company, title and a short note.
func (s *LLMService) ExtractPosting(ctx context.Context, rawText string) (*PostingSuggestion, error) {
	if !s.Enabled() {
		return nil, ErrLLMUnavailable
	}
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, requiredError("raw_text")
	}
	if len(rawText) > maxPostingLength {
		rawText = rawText[:maxPostingLength]
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, fmt.Sprintf(postingExtractionPrompt, rawText))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	var out PostingSuggestion
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &out); err != nil {
		s.Logger.Warn("model returned unparseable JSON", zap.String("raw", resp), zap.Error(err))
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	out.Company = truncateRunes(strings.TrimSpace(out.Company), maxCharFieldLength)
	out.Title = truncateRunes(strings.TrimSpace(out.Title), maxCharFieldLength)
	out.Note = strings.TrimSpace(out.Note)
	return &out, nil
}

// models wrap JSON in ```json fences despite being asked not to
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
