package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	model          = "claude-3-haiku-20240307"
	maxTokens      = 1024
)

// Conversation steps.
const (
	StepCollecting = "COLLECTING"
	StepCompleted  = "COMPLETED"
)

// Client defines the interface for AI text processing.
type Client interface {
	ProcessConversation(ctx context.Context, state ConversationState, reference, input string) (ConversationState, string, error)
}

// ConversationState holds the movement being collected from a field worker.
type ConversationState struct {
	Step string `json:"step"`

	ApplicationID string   `json:"application_id,omitempty"`
	LotID         string   `json:"lot_id,omitempty"`
	ProductID     string   `json:"product_id,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Containers    *float64 `json:"containers,omitempty"`
	Responsible   string   `json:"responsible,omitempty"`
	Notes         string   `json:"notes,omitempty"`

	// History tracks the conversation context
	History []Message `json:"history,omitempty"`
}

// Complete reports whether every required movement field is present.
func (s ConversationState) Complete() bool {
	return s.ApplicationID != "" && s.LotID != "" && s.ProductID != "" && s.Quantity != nil && *s.Quantity > 0
}

type anthropicClient struct {
	httpClient *resty.Client
}

// Option customises the client.
type Option func(*resty.Client)

// WithBaseURL points the client at another host.
func WithBaseURL(url string) Option {
	return func(c *resty.Client) { c.SetBaseURL(strings.TrimSuffix(url, "/")) }
}

// NewClient creates a configured Anthropic client.
func NewClient(apiKey string, opts ...Option) Client {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(15 * time.Second)

	for _, opt := range opts {
		opt(client)
	}

	return &anthropicClient{httpClient: client}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

const systemPromptTemplate = `Eres el asistente de campo de una finca. Tu trabajo es registrar el consumo diario de agroquímicos (un movimiento) que reporta un trabajador.

Aplicaciones en ejecución, con sus lotes y productos:
%s

Estado actual del movimiento (JSON):
%s

DATOS REQUERIDOS (pregunta en este orden si faltan):
1. Aplicación (application_id).
2. Lote (lot_id). Debe pertenecer a la aplicación.
3. Producto (product_id) y cantidad consumida (quantity) en la unidad del producto.
4. Opcional: canecas aplicadas (containers) y observaciones (notes).

REGLAS:
- CRÍTICO: CONSERVA EL ESTADO. Copia todos los valores no nulos del estado actual a "updated_state". Nunca borres datos existentes.
- CRÍTICO: Usa solamente identificadores que aparezcan en la lista de aplicaciones.
- CRÍTICO: Devuelve JSON válido. Escapa los saltos de línea en "reply" (usa \n).
- Si faltan datos requeridos, "reply" pregunta por el siguiente dato faltante.
- Cuando aplicación, lote, producto y cantidad estén completos, pon "step" en "COMPLETED".
- Tu respuesta debe ser SOLO un objeto JSON con esta estructura:
  {
	"updated_state": {
		"step": "COLLECTING" o "COMPLETED",
		"application_id": (texto),
		"lot_id": (texto),
		"product_id": (texto),
		"quantity": (número o null),
		"containers": (número o null),
		"notes": (texto)
	},
	"reply": "Texto para el trabajador"
  }
- "reply" va en español, cordial y breve.
`

func (c *anthropicClient) ProcessConversation(ctx context.Context, state ConversationState, reference, input string) (ConversationState, string, error) {
	// The prompt carries the state without history; history travels as messages.
	promptState := state
	promptState.History = nil
	stateJSON, err := json.Marshal(promptState)
	if err != nil {
		return state, "", fmt.Errorf("encode conversation state: %w", err)
	}

	if strings.TrimSpace(reference) == "" {
		reference = "(ninguna)"
	}
	systemPrompt := fmt.Sprintf(systemPromptTemplate, reference, string(stateJSON))

	currentHistory := append(append([]Message(nil), state.History...), Message{Role: "user", Content: input})

	// Prefill the assistant response to force JSON
	messagesToSend := append(append([]Message(nil), currentHistory...), Message{Role: "assistant", Content: "{"})

	reqBody := messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  messagesToSend,
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/v1/messages")

	if err != nil {
		return state, "", fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return state, "", fmt.Errorf("anthropic api error: %s", resp.String())
	}
	if len(respBody.Content) == 0 {
		return state, "", fmt.Errorf("empty response from ai")
	}

	// Reconstruct the full JSON since we prefilled the opening brace
	responseText := cleanJSON("{" + respBody.Content[0].Text)

	var aiResult struct {
		UpdatedState ConversationState `json:"updated_state"`
		Reply        string            `json:"reply"`
	}

	if err := json.Unmarshal([]byte(responseText), &aiResult); err != nil {
		return state, "Disculpa, no entendí bien. ¿Puedes repetirlo?", fmt.Errorf("failed to unmarshal ai response: %w", err)
	}

	newState := aiResult.UpdatedState
	if newState.Step == StepCompleted && !newState.Complete() {
		newState.Step = StepCollecting
	}
	newState.Responsible = state.Responsible
	newState.History = append(currentHistory, Message{Role: "assistant", Content: aiResult.Reply})

	return newState, aiResult.Reply, nil
}

// cleanJSON strips markdown code fences the model sometimes wraps around its JSON.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			text = strings.TrimSuffix(text, "```")
			break
		}
	}
	return strings.TrimSpace(text)
}
