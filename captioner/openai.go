package captioner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const captionPrompt = "Describe this image in one short sentence."

// OpenAI captions images through a hosted vision model. Selected with
// CAPTIONER=openai.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAI(apiKey, model string, logger *zap.Logger) (*OpenAI, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai captioner requires OPENAI_API_KEY")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	logger.Info("OpenAI captioner initialized", zap.String("model", model))

	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

func (o *OpenAI) Caption(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(data),
		base64.StdEncoding.EncodeToString(data),
	)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: 80,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: captionPrompt,
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", errors.New("openai returned an empty caption")
	}

	o.logger.Debug("Generated caption",
		zap.String("path", imagePath),
		zap.String("caption", caption),
	)

	return caption, nil
}
