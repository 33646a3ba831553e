package openai

import (
	"testing"

	"github.com/lectio/lectio/pkg/provider/llm"
)

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "system", Content: "You are helpful."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "user", Content: "Hello!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "assistant", Content: "Hi there!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(llm.Message{Role: "unknown", Content: "test"})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestModelLimits_GPT4o checks gpt-4o limits.
func TestModelLimits_GPT4o(t *testing.T) {
	limits := modelLimits("gpt-4o")
	if limits.ContextWindow != 128_000 {
		t.Errorf("gpt-4o: expected context window 128000, got %d", limits.ContextWindow)
	}
	if limits.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o: expected max output 16384, got %d", limits.MaxOutputTokens)
	}
}

// TestModelLimits_GPT35Turbo checks gpt-3.5-turbo limits.
func TestModelLimits_GPT35Turbo(t *testing.T) {
	limits := modelLimits("gpt-3.5-turbo")
	if limits.ContextWindow != 16_385 {
		t.Errorf("gpt-3.5-turbo: expected context window 16385, got %d", limits.ContextWindow)
	}
}

// TestModelLimits_GPT4 checks gpt-4 limits.
func TestModelLimits_GPT4(t *testing.T) {
	limits := modelLimits("gpt-4")
	if limits.ContextWindow != 8_192 {
		t.Errorf("gpt-4: expected context window 8192, got %d", limits.ContextWindow)
	}
}

// TestModelLimits_UnknownModel checks defaults for unrecognised models.
func TestModelLimits_UnknownModel(t *testing.T) {
	limits := modelLimits("my-custom-model")
	// Should return sensible defaults without panicking.
	if limits.ContextWindow <= 0 {
		t.Error("unknown model: expected positive ContextWindow")
	}
	if limits.MaxOutputTokens <= 0 {
		t.Error("unknown model: expected positive MaxOutputTokens")
	}
}

// TestCountTokens_Estimation checks that token counting returns a reasonable value.
func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	msgs := []llm.Message{
		{Role: "user", Content: "Hello world"}, // 11 chars → ~3 tokens + 4 overhead = 7
	}
	count, err := p.CountTokens(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}
