package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "video_analysis_duration_seconds",
		Help:      "Duration of AI video analysis requests",
	}, []string{"model"})

	analysisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "video_analysis_failures_total",
		Help:      "Number of AI video analysis failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIVideoAnalyzer implements VideoAnalyzer against the chat completion API.
type OpenAIVideoAnalyzer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIVideoAnalyzer builds a new analyzer using the provided configuration.
func NewOpenAIVideoAnalyzer(cfg OpenAIConfig) (*OpenAIVideoAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIVideoAnalyzer{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-selection-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_video_analyzer").Logger(),
	}, nil
}

// Analyze asks the model for rubric sub-scores and parses its JSON answer.
func (a *OpenAIVideoAnalyzer) Analyze(parent context.Context, input VideoAnalysisInput) (VideoAnalysis, error) {
	ctx, span := a.tracer.Start(parent, "openai.analyze_video", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Int64("video.submission_id", int64(input.SubmissionID)),
	))
	defer span.End()

	fail := func(err error) (VideoAnalysis, error) {
		analysisFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return VideoAnalysis{}, err
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzerSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildAnalysisPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	analysisDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("openai analyze: %w", err))
	}

	if len(resp.Choices) == 0 {
		return fail(fmt.Errorf("no choices returned from openai"))
	}

	analysis, err := parseAnalysisResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return fail(err)
	}

	analysis.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	a.logger.Debug().Uint("submission_id", input.SubmissionID).Msg("video analysis completed")
	return analysis, nil
}

func analyzerSystemPrompt() string {
	return "You rate student presentation videos. Respond with a JSON object with numeric fields content, communication, " +
		"technical, structure and engagement, each between 0 and 100, and a short feedback string."
}

func buildAnalysisPrompt(input VideoAnalysisInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Topic\n")
	builder.WriteString(input.Topic)
	builder.WriteString("\n\n## Video\n")
	builder.WriteString(input.VideoURL)
	if input.Transcript != "" {
		builder.WriteString("\n\n## Transcript\n")
		builder.WriteString(input.Transcript)
	}
	if input.Notes != "" {
		builder.WriteString("\n\n## Reviewer Notes\n")
		builder.WriteString(input.Notes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseAnalysisResponse(content string) (VideoAnalysis, error) {
	type payload struct {
		Content       *float64 `json:"content"`
		Communication *float64 `json:"communication"`
		Technical     *float64 `json:"technical"`
		Structure     *float64 `json:"structure"`
		Engagement    *float64 `json:"engagement"`
		Feedback      string   `json:"feedback"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return VideoAnalysis{}, fmt.Errorf("parse analysis json: %w", err)
	}

	fields := map[string]*float64{
		"content":       data.Content,
		"communication": data.Communication,
		"technical":     data.Technical,
		"structure":     data.Structure,
		"engagement":    data.Engagement,
	}
	for _, name := range []string{"content", "communication", "technical", "structure", "engagement"} {
		if fields[name] == nil {
			return VideoAnalysis{}, fmt.Errorf("analysis json missing %s score", name)
		}
	}

	return VideoAnalysis{
		Content:       *data.Content,
		Communication: *data.Communication,
		Technical:     *data.Technical,
		Structure:     *data.Structure,
		Engagement:    *data.Engagement,
		Feedback:      strings.TrimSpace(data.Feedback),
	}, nil
}
