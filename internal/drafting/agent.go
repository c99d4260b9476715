package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"roxtor/backend/internal/domain"
)

const DefaultModel = "gpt-4o"

// Agent drafts with the OpenAI Responses API under a strict JSON schema.
type Agent struct {
	client *openai.Client
	model  string
	schema map[string]any
}

func NewAgent(apiKey string, model string, opts ...option.RequestOption) (*Agent, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	schema, err := draftSchema()
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Agent{client: &client, model: model, schema: schema}, nil
}

func (a *Agent) Draft(ctx context.Context, req Request) (domain.Draft, error) {
	if strings.TrimSpace(req.Text) == "" {
		return domain.Draft{}, fmt.Errorf("%w: empty request text", ErrUnavailable)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(Prompt(req)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "order_draft",
					Strict:      param.NewOpt(true),
					Schema:      a.schema,
					Description: param.NewOpt("Detected items, totals and a suggested sales reply"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%w: openai responses error: %v", ErrUnavailable, err)
	}
	return parseOutput(resp.OutputText())
}

func parseOutput(content string) (domain.Draft, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Draft{}, fmt.Errorf("%w: empty response content", ErrUnavailable)
	}
	var p payload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return domain.Draft{}, fmt.Errorf("%w: failed to parse draft: %v", ErrUnavailable, err)
	}
	return p.toDraft(), nil
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(payload{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schema, nil
}
