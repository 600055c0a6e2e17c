package extractor

import (
	"strings"
	"testing"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

func TestParseExtractionResponse(t *testing.T) {
	updates, err := parseExtractionResponse(`{"name": "Jane Smith", "email": "jane@x.com"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if updates.Name != "Jane Smith" || updates.Email != "jane@x.com" {
		t.Errorf("updates = %+v", updates)
	}
}

func TestParseExtractionResponseStripsCodeFence(t *testing.T) {
	updates, err := parseExtractionResponse("```json\n{\"program_type\": \"Premium\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if updates.ProgramType != "Premium" {
		t.Errorf("program type = %q", updates.ProgramType)
	}
}

func TestParseExtractionResponseRejectsProse(t *testing.T) {
	if _, err := parseExtractionResponse("Sure! The user's name is Jane."); err == nil {
		t.Error("prose response parsed without error")
	}
}

func TestBuildExtractionPromptCarriesState(t *testing.T) {
	prompt := buildExtractionPrompt("I changed jobs",
		domain.CollectedData{Name: "Jane"}, domain.StepCollectingContext)

	for _, want := range []string{"collecting_context", `"name":"Jane"`, "I changed jobs"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
