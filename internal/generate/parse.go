package generate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

// insightSchema accepts the priority as any number so that out-of-range
// values can be clamped instead of dropped.
const insightSchema = `{
  "type": "object",
  "required": ["insight_type", "insight_title", "insight_description", "priority_score"],
  "properties": {
    "insight_type": {"type": "string", "minLength": 1},
    "insight_title": {"type": "string", "minLength": 1},
    "insight_description": {"type": "string", "minLength": 1},
    "priority_score": {"type": "number"},
    "supporting_data": {"type": "object"}
  }
}`

const emailSchema = `{
  "type": "object",
  "required": ["email_number", "subject_line", "body"],
  "properties": {
    "email_number": {"type": "integer", "minimum": 1, "maximum": 4},
    "send_delay_days": {"type": "integer", "minimum": 0},
    "subject_line": {"type": "string", "minLength": 1},
    "body": {"type": "string", "minLength": 1},
    "data_points_used": {"type": "array", "items": {"type": "string"}},
    "data_points_count": {"type": "integer"},
    "word_count": {"type": "integer"},
    "personalization_pct": {"type": "number"}
  }
}`

var (
	insightValidator = mustSchema(insightSchema)
	emailValidator   = mustSchema(emailSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// cleanJSON strips markdown fences and surrounding prose from a JSON array.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// parseItems decodes a JSON array and keeps the items that validate
// against schema. Text that is not a JSON array is a parse error; invalid
// items are dropped with a warning.
func parseItems(source, text string, schema *gojsonschema.Schema) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(text)), &items); err != nil {
		return nil, resilience.NewParseError(source, eris.Wrap(err, "generate: decode array"))
	}

	valid := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		res, err := schema.Validate(gojsonschema.NewBytesLoader(item))
		if err != nil {
			zap.L().Warn("generate: item is not an object", zap.String("source", source), zap.Int("index", i), zap.Error(err))
			continue
		}
		if !res.Valid() {
			problems := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				problems = append(problems, e.String())
			}
			zap.L().Warn("generate: dropped invalid item",
				zap.String("source", source), zap.Int("index", i), zap.Strings("problems", problems))
			continue
		}
		valid = append(valid, item)
	}
	return valid, nil
}

func clampPriority(v float64) int {
	p := int(v)
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}
