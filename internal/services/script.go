package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/reelhaus/listingreel/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// Script Generation Service
// Turns the property payload into a short marketing narration used as the
// voiceover text. JSON mode keeps the response machine-parseable.
// ---------------------------------------------------------------------------

const scriptModel = openai.GPT4oMini

// ScriptService generates voiceover narration from property details.
type ScriptService struct {
	client *openai.Client
}

func NewScriptService(apiKey string) *ScriptService {
	return &ScriptService{
		client: openai.NewClient(apiKey),
	}
}

// scriptResponse is the JSON shape the model is instructed to return.
type scriptResponse struct {
	Narration string `json:"narration"`
}

const scriptSystemPrompt = `You are a real-estate copywriter producing voiceover narration for short listing videos.

Rules:
- Write flowing spoken prose, no headings, no emoji, no hashtags.
- Open with the location or a standout feature, close with a call to action naming the agent.
- Never invent details that are not in the provided data.
- Respect the word budget exactly; narration that runs long gets cut off mid-sentence in the video.

Respond with JSON: {"narration": "..."}`

// GenerateScript writes narration sized to the target video length.
// Roughly 2.3 spoken words per second at narration pace.
func (s *ScriptService) GenerateScript(ctx context.Context, property models.PropertyDetails, targetSec float64) (string, error) {
	wordBudget := int(targetSec * 2.3)
	if wordBudget < 20 {
		wordBudget = 20
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Address: %s\n", property.Address)
	if property.Price != "" {
		fmt.Fprintf(&sb, "Price: %s\n", property.Price)
	}
	fmt.Fprintf(&sb, "Bedrooms: %d\nBathrooms: %d\n", property.Bedrooms, property.Bathrooms)
	if len(property.Features) > 0 {
		fmt.Fprintf(&sb, "Features: %s\n", strings.Join(property.Features, ", "))
	}
	fmt.Fprintf(&sb, "Agent: %s", property.Agent.Name)
	if property.Agent.Agency != nil && *property.Agent.Agency != "" {
		fmt.Fprintf(&sb, " (%s)", *property.Agent.Agency)
	}
	fmt.Fprintf(&sb, "\nWord budget: %d words maximum\n", wordBudget)

	log.Printf("[Script] Generating narration (targetSec=%.1f, wordBudget=%d)", targetSec, wordBudget)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: scriptModel,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scriptSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("script generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in script response")
	}

	var parsed scriptResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse script response: %w (content: %s)", err, resp.Choices[0].Message.Content)
	}

	narration := strings.TrimSpace(parsed.Narration)
	if narration == "" {
		return "", fmt.Errorf("empty narration in script response")
	}

	log.Printf("[Script] Narration generated (%d words)", len(strings.Fields(narration)))
	return narration, nil
}
