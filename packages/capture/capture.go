package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitsession/packages/http"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Extractor reads values from one response. The content is parsed as
// JSON at most once.
type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.Valid(resp.Content) {
		e.bodyJSON = gjson.Parse(resp.Content)
		e.isJSON = true
	}
	return e
}

// Extract resolves an expression:
//   - "status" returns the status code
//   - "header.<Name>" returns a response header
//   - "cookie" returns the session cookie after the exchange
//   - "body" or "body.<path>" always reads the content, so body fields
//     named status, cookie or header stay reachable
//   - anything else is a gjson path into the content ("" for all of it)
func (e *Extractor) Extract(expr string) (any, bool) {
	switch {
	case expr == "body":
		return e.extractFromBody("")
	case strings.HasPrefix(expr, "body."):
		return e.extractFromBody(strings.TrimPrefix(expr, "body."))
	case expr == "status":
		return e.response.Code, true
	case expr == "cookie":
		return e.response.Cookie, e.response.Cookie != ""
	case strings.HasPrefix(expr, "header."):
		value := e.response.Header(strings.TrimPrefix(expr, "header."))
		return value, value != ""
	default:
		return e.extractFromBody(expr)
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" {
			return e.response.Content, true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// Extract is a convenience for a single expression, returning the value
// formatted for display.
func Extract(resp *http.Response, expr string) (string, error) {
	value, ok := NewExtractor(resp).Extract(expr)
	if !ok {
		return "", fmt.Errorf("nothing found at %q", expr)
	}
	return format(value), nil
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		// objects and arrays
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// SchemaError lists every violation found by ValidateSchema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateSchema checks the response content against the JSON schema in
// schemaPath. It returns a *SchemaError when the document does not match.
func ValidateSchema(resp *http.Response, schemaPath string) error {
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	return ValidateSchemaBytes(resp, schemaData)
}

func ValidateSchemaBytes(resp *http.Response, schemaData []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewStringLoader(resp.Content)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Violations: violations}
}
