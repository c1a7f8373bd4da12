// Package provider implements the OpenAI-backed summarizer client. It is
// the only package that talks to the network; everything above it sees the
// recap.SummarizerClient interface and recap.ClientError classifications.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/recap-o-matic/recap"
)

const defaultMaxOutputTokens = 2600

// Client calls the OpenAI Responses API with a strict JSON schema so the
// model cannot drift from the expected output shape.
type Client struct {
	api             *openai.Client
	model           string
	maxOutputTokens int64
}

var _ recap.SummarizerClient = (*Client)(nil)

func NewClient(apiKey, model string) *Client {
	api := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		api:             &api,
		model:           model,
		maxOutputTokens: defaultMaxOutputTokens,
	}
}

type recapResponse struct {
	Summary string `json:"summary" jsonschema_description:"The summary text as markdown prose"`
}

var recapSchema = GenerateSchema[recapResponse]()

func (c *Client) Summarize(ctx context.Context, instructions, input string) (string, error) {
	return c.generate(ctx, instructions, input)
}

func (c *Client) Combine(ctx context.Context, instructions string, parts []string) (string, error) {
	var b strings.Builder
	for i, part := range parts {
		fmt.Fprintf(&b, "part=%d/%d\n%s\n\n", i+1, len(parts), strings.TrimSpace(part))
	}
	return c.generate(ctx, instructions, b.String())
}

func (c *Client) generate(ctx context.Context, instructions, input string) (string, error) {
	if c.api == nil {
		return "", &recap.ClientError{Kind: recap.KindService, Err: errors.New("provider: client is nil")}
	}
	if c.model == "" {
		return "", &recap.ClientError{Kind: recap.KindService, Err: errors.New("provider: model is empty")}
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "MonthRecap",
			Schema:      recapSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Month recap JSON"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxOutputTokens),
		Instructions:    openai.String(instructions),
		ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := CallWithRetry(ctx, c.api, params)
	if err != nil {
		return "", classify(err)
	}

	var out recapResponse
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return "", &recap.ClientError{
			Kind: recap.KindService,
			Err:  fmt.Errorf("unmarshal recap: %w (model_output_prefix=%q)", err, truncate(resp.OutputText(), 500)),
		}
	}
	return out.Summary, nil
}

// classify maps a raw API error onto the two kinds the escalation logic
// distinguishes. Everything that is not an input-size rejection is a
// service error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	kind := recap.KindService
	if isContextLimitError(err) {
		kind = recap.KindSizeLimit
	}
	return &recap.ClientError{Kind: kind, Err: err}
}

func isContextLimitError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{
		"context length",
		"context_length_exceeded",
		"maximum context",
		"token limit",
		"too many tokens",
		"string too long",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// CallWithRetry retries transient API failures. Rate limits back off long
// enough for a per-minute window to reset; server errors retry sooner.
// Context-limit errors are not transient and fail through immediately.
func CallWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes := []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := client.Responses.New(ctx, params)
		if err != nil {
			var wait time.Duration
			switch {
			case isRateLimitError(err):
				wait = rateLimitWaitTimes[attempt]
			case isServerError(err):
				wait = serverErrorWaitTimes[attempt]
			default:
				return nil, err
			}
			if attempt < maxRetries-1 {
				if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
					return nil, sleepErr
				}
				continue
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// decodeModelJSON tolerates the common ways model output deviates from pure
// JSON: surrounding prose, code fences, truncation. Truncated output maps
// to io.ErrUnexpectedEOF so callers can tell it apart from malformed JSON.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end == -1 || end <= start {
		return errors.New("no json object found in model output")
	}

	candidate := s[start : end+1]
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) && syn.Offset >= int64(len(candidate))-1 {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// GenerateSchema reflects T into an OpenAI-strict JSON schema: no
// additional properties, all fields required, no $ref indirection.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureOpenAICompliance(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func ensureOpenAICompliance(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureOpenAICompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(additionalProps)
	}
}
