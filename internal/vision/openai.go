package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClassifier implements the general-purpose classifier capability over
// a vision-capable chat model, for deployments that run no local inference
// server. The model is asked for ranked labels as JSON; anything it can't
// deliver becomes ErrUnavailable.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
	topK   int
	logger *zap.Logger
}

func NewOpenAIClassifier(apiKey, model string, topK int, logger *zap.Logger) *OpenAIClassifier {
	return &OpenAIClassifier{
		client: openai.NewClient(apiKey),
		model:  model,
		topK:   topK,
		logger: logger,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	prompt := fmt.Sprintf(`Classify the main subject of this photo.
Return the %d most likely labels as a JSON array of objects with this structure,
best first, and nothing else:
[{"label": "some_label", "score": 0.93}, ...]
Use short lowercase nouns as labels (e.g. "cow", "ox", "dog", "car").`, c.topK)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
						},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.Error("failed to get classification from OpenAI", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var preds []Prediction
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &preds); err != nil {
		c.logger.Error("failed to parse OpenAI classification",
			zap.Error(err),
			zap.String("response", content))
		return nil, fmt.Errorf("%w: bad completion: %v", ErrUnavailable, err)
	}
	return preds, nil
}
