// Package vision calls a hosted vision-language model to classify retail
// camera frames and turns each call into an observation plus a metric sample.
package vision

import (
	"context"
	"encoding/base64"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/storewatch/internal/resilience"
)

// Client defines the model API operations used by the analyzer.
type Client interface {
	AnalyzeFrame(ctx context.Context, req FrameRequest) (*FrameResponse, error)
}

// FrameRequest carries one frame and the instruction prompt.
type FrameRequest struct {
	Model     string
	MaxTokens int64
	Prompt    string
	ImageData []byte
	MediaType string // "image/jpeg" or "image/png"
}

// FrameResponse is the model's reply plus token usage.
type FrameResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using the official anthropic-sdk-go, with a
// request rate limiter and retries on transient API failures.
type sdkClient struct {
	client  sdk.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a model client. requestsPerSec caps the outbound call
// rate; zero or negative disables the limiter.
func NewClient(apiKey string, requestsPerSec float64) Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.ShouldRetry = isRetryableAPIError
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "analyze_frame")
	return &sdkClient{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		limiter: limiter,
		retry:   retryCfg,
	}
}

func (c *sdkClient) AnalyzeFrame(ctx context.Context, req FrameRequest) (*FrameResponse, error) {
	if len(req.ImageData) == 0 {
		return nil, eris.New("vision: empty image data")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "vision: rate limiter")
	}

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	encoded := base64.StdEncoding.EncodeToString(req.ImageData)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mediaType, encoded),
				sdk.NewTextBlock(req.Prompt),
			),
		},
	}

	msg, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*sdk.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &FrameResponse{
		Text: text,
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

// isRetryableAPIError retries rate limits and server-side failures; auth and
// request errors fail fast.
func isRetryableAPIError(err error) bool {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return resilience.IsTransientHTTPStatus(apierr.StatusCode)
	}
	return resilience.IsTransient(err)
}
