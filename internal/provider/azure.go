package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"

	"github.com/snsmsm/psyche-scan/internal/domain"
)

// AzureConfig holds the Azure OpenAI connection settings.
type AzureConfig struct {
	APIKey     string
	APIBase    string
	Deployment string
	APIVersion string
	MaxRetries int
	RetryDelay time.Duration
}

// Configured reports whether every required credential is present.
func (c AzureConfig) Configured() bool {
	return c.APIKey != "" && c.APIBase != "" && c.Deployment != ""
}

// AzureOpenAI implements Completer against an Azure OpenAI deployment,
// retrying rate-limited and transient failures with an increasing delay.
type AzureOpenAI struct {
	client     openai.Client
	cfg        AzureConfig
	configured bool
}

// NewAzureOpenAI builds the provider. Missing credentials are tolerated at
// construction so the server can start in a degraded mode; every Complete
// call then fails fast with CodeMissingCredentials.
func NewAzureOpenAI(cfg AzureConfig) *AzureOpenAI {
	p := &AzureOpenAI{cfg: cfg}
	if !cfg.Configured() {
		return p
	}
	p.client = openai.NewClient(
		azure.WithEndpoint(cfg.APIBase, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	)
	p.configured = true
	return p
}

// Complete performs one chat completion with retry. 429 and 5xx responses
// and transport failures are retried up to MaxRetries with a delay that
// grows linearly per attempt; credential problems are never retried.
func (p *AzureOpenAI) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !p.configured {
		return "", domain.NewError(domain.CodeMissingCredentials,
			"Azure OpenAI credentials are not configured")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.cfg.Deployment),
		Messages: toOpenAIMessages(messages),
	}
	if opts.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(opts.MaxCompletionTokens)
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.cfg.RetryDelay * time.Duration(attempt)
			slog.Warn("Retrying completion call",
				"attempt", attempt, "max_retries", p.cfg.MaxRetries, "delay", delay, "error", lastErr)
			time.Sleep(delay)
		}

		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			coded := classify(err)
			lastErr = coded
			if retryable(coded) && attempt < p.cfg.MaxRetries {
				continue
			}
			slog.Error("Completion call failed", "error", coded)
			return "", coded
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = domain.NewError(domain.CodeLLMAPIError,
				"received an empty completion from the provider")
			if attempt < p.cfg.MaxRetries {
				continue
			}
			return "", lastErr
		}

		content := resp.Choices[0].Message.Content
		slog.Debug("Completion received", "model", p.cfg.Deployment, "length", len(content))
		return content, nil
	}
	return "", lastErr
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps a client error onto the domain taxonomy: HTTP responses
// become LLM_API_ERROR carrying the upstream status, everything else is a
// transport-level NETWORK_ERROR.
func classify(err error) *domain.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		coded := domain.WrapError(domain.CodeLLMAPIError,
			"provider returned status "+http.StatusText(apiErr.StatusCode), err)
		coded.StatusCode = http.StatusBadGateway
		return coded
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(strings.ToLower(err.Error()), "connection") {
		return domain.WrapError(domain.CodeNetworkError, "provider unreachable", err)
	}
	return domain.WrapError(domain.CodeNetworkError, "completion transport failure", err)
}

func retryable(err *domain.Error) bool {
	if err.Code == domain.CodeNetworkError {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err.Err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
