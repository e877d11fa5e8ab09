package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/toolspec/pkg/descriptor"
	"github.com/wilhg/toolspec/pkg/errmodel"
)

const analysisSchema = `{
  "type": "object",
  "properties": {
    "tools": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "parameters": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {"type": "string"},
                "description": {"type": "string"},
                "required": {"type": "boolean"}
              }
            }
          },
          "return_description": {"type": "string"}
        }
      }
    },
    "resources": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "methods": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const parametersSchema = `{
  "type": "object",
  "required": ["parameters"],
  "properties": {
    "parameters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "description": {"type": "string"},
          "required": {"type": "boolean"},
          "constraints": {"type": "string"}
        }
      }
    }
  }
}`

const categoriesSchema = `{
  "type": "object",
  "required": ["categories"],
  "properties": {
    "categories": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["name"],
          "properties": {
            "name": {"type": "string"},
            "reason": {"type": "string"}
          }
        }
      }
    }
  }
}`

const groupingSchema = `{
  "type": "object",
  "properties": {
    "tool_groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "methods"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "methods": {"type": "array", "items": {"type": "string"}},
          "rationale": {"type": "string"}
        }
      }
    },
    "standalone_tools": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compiled(name string) (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = map[string]*jsonschema.Schema{}
		c := jsonschema.NewCompiler()
		src := map[string]string{
			"mem://analysis.json":   analysisSchema,
			"mem://parameters.json": parametersSchema,
			"mem://categories.json": categoriesSchema,
			"mem://grouping.json":   groupingSchema,
		}
		for url, body := range src {
			var doc any
			if err := json.Unmarshal([]byte(body), &doc); err != nil {
				schemaErr = err
				return
			}
			if err := c.AddResource(url, doc); err != nil {
				schemaErr = err
				return
			}
		}
		for url := range src {
			sch, err := c.Compile(url)
			if err != nil {
				schemaErr = err
				return
			}
			schemas[url] = sch
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return schemas[name], nil
}

// StripFences removes a surrounding Markdown code fence (``` or ```json).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		// Single line: "```json {...}```". The info string ends at the first
		// character that cannot belong to a language tag.
		s = strings.TrimLeftFunc(s, isInfoRune)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isInfoRune(r rune) bool {
	return r == '_' || r == '-' || r == '+' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// decode strips fences, validates text against the named schema and
// unmarshals it into out. Every failure is a parse error.
func decode(text, schema string, out any) error {
	body := StripFences(text)
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return errmodel.Parse("not_json", "reply is not JSON", map[string]any{"reply": body}, err)
	}
	sch, err := compiled(schema)
	if err != nil {
		return errmodel.System("schema", "reply schema does not compile", nil, err)
	}
	if err := sch.Validate(doc); err != nil {
		return errmodel.Parse("schema_mismatch", "reply does not match the expected structure", map[string]any{"reply": body}, err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return errmodel.Parse("decode", fmt.Sprintf("reply could not be decoded: %v", err), nil, err)
	}
	return nil
}

type analysisReply struct {
	Tools     []descriptor.ToolDescriptor     `json:"tools"`
	Resources []descriptor.ResourceDescriptor `json:"resources"`
}

// ParseAnalysis parses a backend reply into an AnalysisResult. Missing keys
// yield empty collections.
func ParseAnalysis(text string) (descriptor.AnalysisResult, error) {
	var r analysisReply
	if err := decode(text, "mem://analysis.json", &r); err != nil {
		return descriptor.AnalysisResult{}, err
	}
	out := descriptor.NewAnalysisResult()
	for _, t := range r.Tools {
		if t.Parameters == nil {
			t.Parameters = []descriptor.ParamSpec{}
		}
		out.Tools = append(out.Tools, t)
	}
	for _, res := range r.Resources {
		if res.Methods == nil {
			res.Methods = []string{}
		}
		out.Resources = append(out.Resources, res)
	}
	return out, nil
}
