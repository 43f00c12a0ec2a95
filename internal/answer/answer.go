// Package answer turns retrieved passages into grounded answers and
// summaries via a completion provider.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/pdf-inquiry/internal/llm"
	"github.com/ziadkadry99/pdf-inquiry/internal/retrieval"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

// NotFoundReply is the answer the model is told to give when the context
// does not contain the answer.
const NotFoundReply = "I couldn't find that information in the document."

const (
	DefaultQATimeout          = 30 * time.Second
	DefaultSummaryTimeout     = 60 * time.Second
	DefaultQATemperature      = 0.3
	DefaultSummaryTemperature = 0.2
)

// Options tunes a Composer. Zero timeouts and nil temperatures use the
// defaults; a temperature of 0 is honoured.
type Options struct {
	Model              string
	QATimeout          time.Duration
	SummaryTimeout     time.Duration
	QATemperature      *float64
	SummaryTemperature *float64
}

// ServiceError describes a failed call to the answering service.
type ServiceError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out", e.Op)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: service returned status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Reason is the short text shown to the user.
func (e *ServiceError) Reason() string {
	switch {
	case e.Timeout:
		return "request timed out"
	case e.StatusCode != 0:
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return e.Err.Error()
	}
}

// Composer builds prompts and calls the provider. Service failures become
// the answer text; they are never returned as errors.
type Composer struct {
	provider    llm.Provider
	opts        Options
	qaTemp      float64
	summaryTemp float64
	logger      *slog.Logger
}

// New creates a Composer.
func New(provider llm.Provider, opts Options, logger *slog.Logger) *Composer {
	if opts.QATimeout <= 0 {
		opts.QATimeout = DefaultQATimeout
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = DefaultSummaryTimeout
	}
	c := &Composer{
		provider:    provider,
		opts:        opts,
		qaTemp:      DefaultQATemperature,
		summaryTemp: DefaultSummaryTemperature,
		logger:      logger,
	}
	if opts.QATemperature != nil {
		c.qaTemp = *opts.QATemperature
	}
	if opts.SummaryTemperature != nil {
		c.summaryTemp = *opts.SummaryTemperature
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// QuestionPrompt frames question with the retrieved context.
func QuestionPrompt(question string, passages []segment.Passage) string {
	return "Based on this context from the PDF:\n" +
		retrieval.JoinText(passages) +
		"\n\nAnswer this question: " + question +
		"\n\nIf the answer cannot be found in the context, reply with \"" + NotFoundReply + "\""
}

// SummaryPrompt asks for a structured summary of text.
func SummaryPrompt(text string) string {
	return "Please provide a comprehensive summary of the following document. " +
		"Focus on the main points, key findings, and important details. " +
		"Structure the summary with clear paragraphs:\n\n" + text
}

// Answer asks the provider to answer question from passages.
func (c *Composer) Answer(ctx context.Context, question string, passages []segment.Passage) string {
	text, err := c.complete(ctx, "answer", QuestionPrompt(question, passages), c.qaTemp, c.opts.QATimeout)
	if err != nil {
		return "⚠️ Error connecting to API: " + err.Reason()
	}
	return text
}

// Summarize asks the provider to summarize text.
func (c *Composer) Summarize(ctx context.Context, text string) string {
	out, err := c.complete(ctx, "summary", SummaryPrompt(text), c.summaryTemp, c.opts.SummaryTimeout)
	if err != nil {
		return "⚠️ Error generating summary: " + err.Reason()
	}
	return out
}

func (c *Composer) complete(ctx context.Context, op, prompt string, temperature float64, timeout time.Duration) (string, *ServiceError) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model:       c.opts.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		se := classify(op, err)
		c.logger.Error("answering service failed",
			"op", op,
			"provider", c.provider.Name(),
			"status", se.StatusCode,
			"timeout", se.Timeout,
			"elapsed", time.Since(start),
			"error", err,
		)
		return "", se
	}
	c.logger.Debug("answering service replied",
		"op", op,
		"provider", c.provider.Name(),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"elapsed", time.Since(start),
	)
	return resp.Content, nil
}

func classify(op string, err error) *ServiceError {
	se := &ServiceError{Op: op, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		se.Timeout = true
	case errors.As(err, &apiErr):
		se.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		se.StatusCode = reqErr.HTTPStatusCode
	case errors.As(err, &statusErr):
		se.StatusCode = statusErr.StatusCode
	}
	return se
}
