// Package insight turns a registry record into a prompt for an external
// text-generation API and returns the model's answer unmodified apart from
// whitespace trimming. It does not retry, cache or check the content.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/metrics"
	"github.com/medledger/medledger/pkg/apperr"
)

const (
	DefaultModel     = openai.GPT3Dot5Turbo
	DefaultMaxTokens = 150
)

// RecordReader reads a patient record attributed to caller.
type RecordReader interface {
	GetDetails(ctx context.Context, caller, patient common.Address) (*ledger.PatientRecord, error)
}

// Completer is the part of the OpenAI client the generator uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Result is one generated insight. It is never persisted.
type Result struct {
	SourceRecordAddress string `json:"source_record_address"`
	GeneratedText       string `json:"generated_text"`
}

type Config struct {
	Model     string
	MaxTokens int
}

type Generator struct {
	records   RecordReader
	completer Completer
	caller    common.Address
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// NewGenerator builds a generator that reads records as caller.
func NewGenerator(records RecordReader, completer Completer, caller common.Address, cfg Config, logger zerolog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Generator{
		records:   records,
		completer: completer,
		caller:    caller,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With().Str("component", "insight").Logger(),
	}
}

// NewOpenAIClient builds the text-generation client. An empty baseURL keeps
// the library's default endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// BuildPrompt renders the fixed prompt template for a record.
func BuildPrompt(rec *ledger.PatientRecord) string {
	age := "0"
	if rec.Age != nil {
		age = rec.Age.String()
	}
	return fmt.Sprintf(
		"Provide medical advice for a patient named %s, aged %s, with the following medical history: %s.",
		rec.Name, age, rec.MedicalHistory,
	)
}

// Generate reads the record at patientAddress and asks the model for advice.
// If the record cannot be read the model is not called.
func (g *Generator) Generate(ctx context.Context, patientAddress string) (*Result, error) {
	if strings.TrimSpace(patientAddress) == "" {
		return nil, apperr.Validation("Patient address is required")
	}
	patient, err := ledger.ParseAddress(patientAddress)
	if err != nil {
		return nil, err
	}

	rec, err := g.records.GetDetails(ctx, g.caller, patient)
	metrics.ChainCalls.WithLabelValues("get_patient_details", metrics.Outcome(err)).Inc()
	if err != nil {
		g.logger.Error().Err(err).Str("patient", patient.Hex()).Msg("record lookup failed")
		return nil, err
	}

	resp, err := g.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(rec)},
		},
		MaxTokens: g.maxTokens,
	})
	metrics.InsightRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		g.logger.Error().Err(err).Str("patient", patient.Hex()).Msg("text generation failed")
		return nil, upstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.KindUpstreamAPI, "no completion returned")
	}

	return &Result{
		SourceRecordAddress: patient.Hex(),
		GeneratedText:       strings.TrimSpace(resp.Choices[0].Message.Content),
	}, nil
}

// upstreamError prefers the API's own error message over the transport text.
func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &apperr.Error{Kind: apperr.KindUpstreamAPI, Message: apiErr.Message, Err: err}
	}
	return apperr.Wrap(apperr.KindUpstreamAPI, err)
}
