package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a curriculum document fails schema validation.
var ErrInvalidDocument = errors.New("invalid curriculum document")

// ErrDuplicateSlug is returned when a module slug occurs more than once in a track.
var ErrDuplicateSlug = errors.New("duplicate module slug")

// trackSchema only checks array/field presence; content is opaque.
const trackSchema = `{
  "type": "object",
  "required": ["segments"],
  "properties": {
    "trackTitle": {"type": "string"},
    "folder": {"type": "string"},
    "segments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["modules"],
        "properties": {
          "segmentId": {"type": ["string", "integer"]},
          "title": {"type": "string"},
          "modules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["moduleId", "title", "topics"],
              "properties": {
                "moduleId": {"type": ["string", "integer"]},
                "slug": {"type": "string"},
                "title": {"type": "string"},
                "estimatedHours": {"type": "number"},
                "topics": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledTrackSchema = mustCompileSchema(trackSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling curriculum schema: %v", err))
	}
	return s
}

// Validate checks a decoded curriculum document against the track schema.
func Validate(doc any) error {
	result, err := compiledTrackSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}
