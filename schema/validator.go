// Package payloadschema validates article payloads accepted by the ingest
// command and the batches endpoint.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed article.schema.json
var articleSchemaJSON string

const articleSchemaName = "article.schema.json"

// ArticlePayload is one validated v1 article.
type ArticlePayload struct {
	PayloadVersion string         `json:"payload_version"`
	ID             string         `json:"id"`
	Source         string         `json:"source"`
	Title          string         `json:"title"`
	Summary        *string        `json:"summary,omitempty"`
	BodyHTML       *string        `json:"body_html,omitempty"`
	URL            string         `json:"url"`
	PublishedAt    string         `json:"published_at"`
	Popularity     float64        `json:"popularity"`
	Language       *string        `json:"language,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishedTime returns the parsed publication instant in UTC.
func (p *ArticlePayload) PublishedTime() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(p.PublishedAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("published_at must be RFC3339: %w", err)
	}
	return ts.UTC(), nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticlePayload checks one JSON document against the v1 schema and
// the semantic rules the schema cannot express.
func ValidateArticlePayload(payload json.RawMessage) (*ArticlePayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}
	return validateValue(value)
}

// ValidateBatchPayload accepts either {"articles":[...]} or a bare array and
// validates every element. Errors name the offending index.
func ValidateBatchPayload(payload json.RawMessage) ([]ArticlePayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		raw, ok := v["articles"]
		if !ok {
			return nil, fmt.Errorf("batch must contain an articles array")
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("articles must be an array")
		}
		items = list
	default:
		return nil, fmt.Errorf("batch must be an object or array")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("batch contains no articles")
	}

	out := make([]ArticlePayload, 0, len(items))
	for i, item := range items {
		article, err := validateValue(item)
		if err != nil {
			return nil, fmt.Errorf("articles[%d]: %w", i, err)
		}
		out = append(out, *article)
	}
	return out, nil
}

func validateValue(value any) (*ArticlePayload, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item ArticlePayload
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := validateSemantics(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(articleSchemaName, strings.NewReader(articleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(articleSchemaName)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func validateSemantics(item *ArticlePayload) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("id must not be empty")
	}
	if strings.TrimSpace(item.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	parsed, err := url.ParseRequestURI(strings.TrimSpace(item.URL))
	if err != nil {
		return fmt.Errorf("url is not a valid URI: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}

	if _, err := item.PublishedTime(); err != nil {
		return err
	}
	return nil
}
