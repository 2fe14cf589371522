// Package openai implements the receipt extraction oracle on the OpenAI
// API: vision chat completions for images, plain chat completions for free
// text, and Whisper transcription for audio.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/extraction"
)

// Config holds extractor settings
type Config struct {
	APIKey string
	// Model is tried first; FallbackModels are tried in order when a model
	// is unavailable for this key
	Model          string
	FallbackModels []string
	Temperature    float32
	MaxTokens      int
	// Timeout bounds one Extract call across all fallback attempts;
	// zero means the caller's context deadline alone applies
	Timeout time.Duration
}

// Extractor implements port.Extractor using OpenAI
type Extractor struct {
	client      *openai.Client
	models      []string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewExtractor creates a new OpenAI extractor
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	models := append([]string{cfg.Model}, cfg.FallbackModels...)
	return &Extractor{
		client:      openai.NewClient(cfg.APIKey),
		models:      models,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Extract reads a receipt from the request's payload. Models are tried in
// priority order; a model-unavailable failure moves on to the next model,
// any other failure is classified and returned immediately.
func (e *Extractor) Extract(ctx context.Context, req port.ExtractRequest) (*entity.ExtractionResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text := req.Text
	if req.Modality == entity.ModalityAudio {
		transcribed, err := e.transcribe(ctx, req)
		if err != nil {
			return nil, err
		}
		text = transcribed
	}

	var lastErr error
	for _, model := range e.models {
		var (
			content string
			err     error
		)
		switch req.Modality {
		case entity.ModalityImage, entity.ModalityPDF:
			content, err = e.completeVision(ctx, model, req)
		default:
			content, err = e.completeText(ctx, model, text, req)
		}

		if err != nil {
			classified := extraction.ClassifyOracleError(model, err)
			if classified.Kind == extraction.OracleModelUnavailable {
				e.logger.Warn("Model unavailable, trying fallback",
					zap.String("model", model),
					zap.Error(err))
				lastErr = classified
				continue
			}
			e.logger.Error("Extraction call failed",
				zap.String("model", model),
				zap.String("kind", string(classified.Kind)),
				zap.Error(err))
			return nil, classified
		}

		result, err := decodeResult(content)
		if err != nil {
			e.logger.Error("Failed to parse extraction response",
				zap.String("model", model),
				zap.String("content", content))
			return nil, &extraction.OracleError{
				Kind:  extraction.OracleMalformed,
				Model: model,
				Err:   err,
			}
		}

		e.logger.Info("Receipt extracted",
			zap.String("model", model),
			zap.String("supplier", result.SupplierName),
			zap.Float64("total", result.TotalAmount),
			zap.Int("items", len(result.Items)))
		return result, nil
	}

	if lastErr == nil {
		lastErr = &extraction.OracleError{
			Kind: extraction.OracleModelUnavailable,
			Err:  errors.New("no models configured"),
		}
	}
	return nil, lastErr
}

func (e *Extractor) completeVision(ctx context.Context, model string, req port.ExtractRequest) (string, error) {
	prompt := buildReceiptPrompt(req.CategoryNames, req.PurposeNames)
	imageURL := fmt.Sprintf("data:%s;base64,%s",
		req.MimeType, base64.StdEncoding.EncodeToString(req.Payload))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: receiptSystemPrompt,
			},
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
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *Extractor) completeText(ctx context.Context, model, text string, req port.ExtractRequest) (string, error) {
	prompt := buildReceiptPrompt(req.CategoryNames, req.PurposeNames) +
		"\n\nReceipt description:\n" + text

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: receiptSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *Extractor) transcribe(ctx context.Context, req port.ExtractRequest) (string, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(req.Payload),
		FilePath: "receipt-audio" + audioExtension(req.MimeType),
	})
	if err != nil {
		return "", extraction.ClassifyOracleError(openai.Whisper1, err)
	}
	return resp.Text, nil
}

func audioExtension(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ".m4a"
	}
}

// decodeResult parses the model's reply, tolerating JSON wrapped in prose
// or markdown code fences
func decodeResult(content string) (*entity.ExtractionResult, error) {
	var result entity.ExtractionResult
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return &result, nil
	}

	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, errors.New("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("parse extracted JSON: %w", err)
	}
	return &result, nil
}
