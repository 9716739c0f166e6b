package gemini

import (
	"context"
	"errors"
	"os"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Client adapts the Gemini API to the assist.TextGenerator port.
type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey string, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Client{client: c, model: model}, nil
}

// NewFromEnv reads GEMINI_API_KEY and GEMINI_MODEL.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
