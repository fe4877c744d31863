package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

// SchemaError is a schema violation at a path inside the document.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every schema violation found in a document.
type ValidationErrors []*SchemaError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("config schema has no #Config definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks a decoded document (maps, slices and scalars as produced
// by the YAML decoder) against the schema. It returns ValidationErrors
// when the document is rejected.
func Validate(doc any) error {
	ctx, schema, err := loadSchema()
	if err != nil {
		return err
	}

	validateMu.Lock()
	defer validateMu.Unlock()

	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	unified := schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) error {
	cueErrs := errors.Errors(err)
	if len(cueErrs) == 0 {
		return ValidationErrors{{Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(cueErrs))
	for _, e := range cueErrs {
		format, args := e.Msg()
		path := e.Path()
		if len(path) > 0 && path[0] == "#Config" {
			path = path[1:]
		}
		out = append(out, &SchemaError{
			Path:    strings.Join(path, "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}
