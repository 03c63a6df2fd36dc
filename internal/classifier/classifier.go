// Package classifier turns free-text financial statements into structured
// candidates by calling an OpenAI-compatible chat-completions endpoint.
//
// The endpoint is a black box behind the Classifier interface: any
// implementation that honors the JSON contract and the error taxonomy can
// replace the Groq-backed one.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"grana/internal/core"
)

var (
	// ErrUnintelligible means the model produced no usable amount; the user
	// should rephrase with amount and context. Never retried.
	ErrUnintelligible = errors.New("message not intelligible as a transaction")

	// ErrUnavailable means the endpoint itself failed (timeout, non-2xx,
	// malformed transport). Transient; no partial state change.
	ErrUnavailable = errors.New("classifier endpoint unavailable")
)

// Classifier extracts a transaction candidate from raw text.
type Classifier interface {
	Classify(ctx context.Context, rawText string) (core.Candidate, error)
}

const systemPrompt = `Você é um extrator de despesas e ganhos financeiros em português do Brasil.
Dada uma mensagem, devolva APENAS um JSON válido (sem texto extra) com:
{
  "type": "expense" | "income",
  "amount": number | null,
  "currency": "BRL",
  "category": "alimentacao"|"transporte"|"saude"|"lazer"|"casa"|"salario"|"freelance"|"investimento"|"outros",
  "description": string,
  "confidence": number
}
Regras:
- Se a mensagem indicar dinheiro RECEBIDO (salário, pagamento, venda, freelance, transferência recebida, investimento), type="income".
- Se a mensagem indicar dinheiro GASTO (compra, pagamento de conta, despesa), type="expense".
- Se não houver valor claro, amount=null, category="outros" e confidence baixa.
- description deve ser curta (2 a 6 palavras).
- currency sempre "BRL".`

// Client calls a Groq (OpenAI-compatible) chat-completions endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

// Config holds classifier client configuration.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates a Groq-backed classifier.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		http:   &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extraction is the strict shape the model must answer with. Any other
// response shape is rejected.
type extraction struct {
	Type        string       `json:"type"`
	Amount      *json.Number `json:"amount"`
	Currency    string       `json:"currency"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Confidence  float64      `json:"confidence"`
}

// Classify sends rawText to the model and parses the structured answer.
// The candidate comes back normalized but not yet validated: amount bounds
// are the Validator's job, not the gateway's.
func (c *Client) Classify(ctx context.Context, rawText string) (core.Candidate, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: strings.TrimSpace(rawText)},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return core.Candidate{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return core.Candidate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Candidate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.Candidate{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return core.Candidate{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(chat.Choices) == 0 {
		return core.Candidate{}, fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	return parseExtraction(rawText, chat.Choices[0].Message.Content)
}

// parseExtraction validates the model content against the contract. A parse
// failure or a missing/null amount is the user's problem (rephrase), not a
// transport failure.
func parseExtraction(rawText, content string) (core.Candidate, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var ext extraction
	if err := dec.Decode(&ext); err != nil {
		return core.Candidate{}, fmt.Errorf("%w: %v", ErrUnintelligible, err)
	}
	if ext.Amount == nil {
		return core.Candidate{}, ErrUnintelligible
	}

	amount, err := decimal.NewFromString(ext.Amount.String())
	if err != nil {
		return core.Candidate{}, fmt.Errorf("%w: bad amount %q", ErrUnintelligible, ext.Amount.String())
	}

	candidate := core.Candidate{
		RawText:     rawText,
		Amount:      core.MoneyFromDecimal(amount),
		Currency:    ext.Currency,
		Category:    ext.Category,
		Description: strings.TrimSpace(ext.Description),
		Confidence:  ext.Confidence,
		Kind:        core.Kind(ext.Type),
	}
	candidate.Normalize()
	return candidate, nil
}
