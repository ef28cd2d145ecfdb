package ai

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
)

// IntakeAgent turns a free-text loan request into a structured proposal.
type IntakeAgent interface {
	InterpretIntake(ctx context.Context, request string, catalog IntakeCatalog) (*IntakeResponse, error)
}

// IntakeCatalog lists what the model may choose from, one entry per line.
type IntakeCatalog struct {
	Borrowers string
	LoanTypes string
}

// IntakeResponse is either a proposal or a clarification request.
type IntakeResponse struct {
	IsClarificationRequest bool            `json:"is_clarification_request" jsonschema_description:"True when the request lacks the borrower, loan type, amount or tenure."`
	ClarificationMessage   string          `json:"clarification_message" jsonschema_description:"Question for the loan officer. Empty when a proposal is returned."`
	Proposal               *IntakeProposal `json:"proposal" jsonschema_description:"The draft loan. Null when clarification is requested."`
}

// IntakeProposal names a borrower and loan type by code and name, not id.
type IntakeProposal struct {
	BorrowerCode string  `json:"borrower_code" jsonschema_description:"Code of the borrower, taken from the borrower list."`
	LoanTypeName string  `json:"loan_type_name" jsonschema_description:"Exact name of the loan type, taken from the loan type list."`
	Amount       string  `json:"amount" jsonschema_description:"Requested principal as an exact decimal string, e.g. \"12000.00\"."`
	Tenure       int     `json:"tenure" jsonschema_description:"Number of installments."`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence" jsonschema_description:"0.0 to 1.0"`
}

// Normalize trims model output before it is resolved against the catalog.
func (p *IntakeProposal) Normalize() {
	p.BorrowerCode = strings.ToUpper(strings.TrimSpace(p.BorrowerCode))
	p.LoanTypeName = strings.TrimSpace(p.LoanTypeName)
	p.Amount = strings.ReplaceAll(strings.TrimSpace(p.Amount), ",", "")
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client, model: shared.ResponsesModel(shared.ChatModelGPT4o)}
}

func (a *Agent) InterpretIntake(ctx context.Context, request string, catalog IntakeCatalog) (*IntakeResponse, error) {
	prompt := fmt.Sprintf(`You are a loan officer's assistant.
Turn the request below into a draft loan.
Rules:
1. Use ONLY a borrower code from the borrower list and a loan type name from the loan type list.
2. The amount is an exact decimal string without currency symbols.
3. The tenure is the number of monthly installments.
4. If the borrower, loan type, amount or tenure cannot be determined, ask for clarification instead.
5. Provide a confidence score (0.0-1.0) and explain your reasoning.

Borrowers:
%s

Loan types:
%s

Request: %s`, catalog.Borrowers, catalog.LoanTypes, request)

	schemaMap, err := schemaFor(IntakeResponse{})
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "loan_intake",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A draft loan proposal or a clarification request"),
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
	return ParseIntakeResponse(content)
}

// ParseIntakeResponse decodes and normalizes the model's JSON answer.
func ParseIntakeResponse(content string) (*IntakeResponse, error) {
	var out IntakeResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	if out.IsClarificationRequest {
		if strings.TrimSpace(out.ClarificationMessage) == "" {
			return nil, fmt.Errorf("clarification requested without a message")
		}
		out.Proposal = nil
		return &out, nil
	}
	if out.Proposal == nil {
		return nil, fmt.Errorf("response carries neither a proposal nor a clarification")
	}
	out.Proposal.Normalize()
	return &out, nil
}

func schemaFor(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
