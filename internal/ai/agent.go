package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"stockroom/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// AgentService turns a natural-language stock request into a structured tag
// proposal (or a clarification request). Proposals are never committed here:
// the caller surfaces them for human confirmation first.
type AgentService interface {
	InterpretRequest(ctx context.Context, naturalLanguage, catalog string) (*core.AgentResponse, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

func (a *Agent) InterpretRequest(ctx context.Context, naturalLanguage, catalog string) (*core.AgentResponse, error) {
	prompt := fmt.Sprintf(`You are the stockroom clerk for a business inventory and tool-lending system.
Your goal is to interpret a stock request described in natural language and propose a tag: a hold that allocates specific units of catalog SKUs.
You MUST use the provided catalog.
Rules:
1. Use ONLY SKU codes from the list below.
2. A tag holds one or more SKU lines, each with a positive quantity.
3. Reservations ('reserved') hold materials for a job; loans ('loaned') hand tools out and usually have a due date.
4. Selection method per line is 'fifo' (oldest units first) unless the user asks for cheapest or most expensive units, then 'cost_based'.
5. Provide a confidence score (0.0-1.0) and explain your reasoning.
6. If the request is ambiguous (no SKU, no quantity), ask for clarification instead of guessing.

Catalog:
%s

Request: %s`, catalog, naturalLanguage)

	// Dynamically generate the JSON schema from the Go struct
	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "tag_proposal",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A proposal for an inventory tag (reservation, loan, or hold) or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var response core.AgentResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if response.IsClarificationRequest {
		if response.Clarification == nil {
			return nil, fmt.Errorf("clarification requested without a message")
		}
		return &response, nil
	}

	if response.Proposal == nil {
		return nil, fmt.Errorf("response contains neither proposal nor clarification")
	}
	response.Proposal.Normalize()
	if err := response.Proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}
	return &response, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.AgentResponse
	return reflector.Reflect(v)
}
