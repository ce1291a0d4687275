package engine

import (
	"context"
	"encoding/base64"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const defaultClaudeMaxTokens = 2048

// claudePrompt asks for a verbatim transcription so the output is comparable
// against ground truth without commentary stripping.
const claudePrompt = "Transcribe all text visible in this image exactly as written. " +
	"Output only the transcribed text, with no commentary or formatting."

// Claude recognizes text in images using the Anthropic Messages API with an
// image content block.
type Claude struct {
	model      string
	maxTokens  int64
	newMessage func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// NewClaude creates a Claude engine.
func NewClaude(apiKey, model string, maxTokens int64) *Claude {
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Claude{
		model:     model,
		maxTokens: maxTokens,
		newMessage: func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
			return client.Messages.New(ctx, params)
		},
	}
}

func (c *Claude) Name() string { return "claude" }

// Recognize sends the image with a transcription prompt and returns the
// model's text output.
func (c *Claude) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", eris.Wrapf(err, "claude: read image %s", imagePath)
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	msg, err := c.newMessage(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(imageMIMEType(imagePath), encoded),
				sdk.NewTextBlock(claudePrompt),
			),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "claude: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
