package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// MetaFileName is the metadata file at the score root
const MetaFileName = "meta.yaml"

var ErrInvalidMeta = errors.New("invalid score metadata")

// metaSchema constrains meta.yaml before it is decoded into Meta
const metaSchema = `{
  "type": "object",
  "required": ["BPM", "AudioFilePath", "AudioOffsetSec"],
  "properties": {
    "BPM":            {"type": "integer", "minimum": 1},
    "AudioFilePath":  {"type": "string", "minLength": 1},
    "AudioOffsetSec": {"type": "number"}
  }
}`

var metaSchemaLoader = gojsonschema.NewStringLoader(metaSchema)

// Meta holds the session parameters of a score root
type Meta struct {
	BPM            int     `yaml:"BPM"`
	AudioFilePath  string  `yaml:"AudioFilePath"`
	AudioOffsetSec float64 `yaml:"AudioOffsetSec"`
}

// AudioOffset returns the offset as a duration
func (m Meta) AudioOffset() time.Duration {
	return time.Duration(m.AudioOffsetSec * float64(time.Second))
}

// ParseMeta decodes and validates meta.yaml content
func ParseMeta(data []byte) (Meta, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	result, err := gojsonschema.Validate(metaSchemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Meta{}, fmt.Errorf("%w: %s", ErrInvalidMeta, strings.Join(msgs, "; "))
	}

	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	return meta, nil
}
