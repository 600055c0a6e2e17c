package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

const extractionSystemPrompt = `You extract membership enrollment fields from a single chat message.
Respond with a JSON object only, no prose. Keys: name, email, company, job_title, program_type, referral_source.
Include a key only when the message states or corrects that field. Never invent values.
program_type is one of Basic, Premium, Corporate, Enterprise, Individual when the message maps to one.`

// AnthropicExtractor asks a Claude model to extract enrollment fields.
type AnthropicExtractor struct {
	client anthropic.Client
	model  string
}

// NewAnthropicExtractor builds the remote extractor.
func NewAnthropicExtractor(apiKey, model string) *AnthropicExtractor {
	return &AnthropicExtractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

type extractedFields struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Company        string `json:"company"`
	JobTitle       string `json:"job_title"`
	ProgramType    string `json:"program_type"`
	ReferralSource string `json:"referral_source"`
}

// Extract sends the message plus the already-collected state and parses the
// model's JSON reply. The caller bounds the call via ctx.
func (e *AnthropicExtractor) Extract(ctx context.Context, message string, current domain.CollectedData, step domain.Step) (domain.FieldUpdates, error) {
	userPrompt := buildExtractionPrompt(message, current, step)

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: extractionSystemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return domain.FieldUpdates{}, fmt.Errorf("anthropic extraction: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return parseExtractionResponse(block.Text)
		}
	}
	return domain.FieldUpdates{}, fmt.Errorf("no text content in extraction response")
}

func buildExtractionPrompt(message string, current domain.CollectedData, step domain.Step) string {
	var b strings.Builder
	b.WriteString("Current workflow stage: ")
	b.WriteString(string(step))
	b.WriteString("\nAlready collected (do not repeat unless the message changes them): ")
	collected, _ := json.Marshal(current)
	b.Write(collected)
	b.WriteString("\nMessage:\n")
	b.WriteString(message)
	return b.String()
}

func parseExtractionResponse(responseText string) (domain.FieldUpdates, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var fields extractedFields
	if err := json.Unmarshal([]byte(responseText), &fields); err != nil {
		return domain.FieldUpdates{}, fmt.Errorf("parsing extraction response: %w", err)
	}
	return domain.FieldUpdates{
		Name:           strings.TrimSpace(fields.Name),
		Email:          strings.TrimSpace(fields.Email),
		Company:        strings.TrimSpace(fields.Company),
		JobTitle:       strings.TrimSpace(fields.JobTitle),
		ProgramType:    strings.TrimSpace(fields.ProgramType),
		ReferralSource: strings.TrimSpace(fields.ReferralSource),
	}, nil
}
