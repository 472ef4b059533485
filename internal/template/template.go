// Package template implements the Template Renderer: a narrow pluggable
// dependency exposing render(text, context) -> text. Expressions inside
// {{ }} delimiters are evaluated as CEL with the incoming node output bound
// as the "data" variable; the delimiter is {{ }} rather than ${ } so it does
// not collide with shell-style env interpolation some node kinds may also
// support in their own configs.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/tidwall/gjson"

	"github.com/lyzr/flowengine/internal/errs"
)

var delimiter = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)

// ContainsTemplate reports whether s has at least one {{ ... }} delimiter.
func ContainsTemplate(s string) bool {
	return delimiter.MatchString(s)
}

// Renderer evaluates {{ expr }} spans against a data context, caching
// compiled CEL programs by expression text.
type Renderer struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// New returns a Renderer with an empty compiled-expression cache.
func New() *Renderer {
	return &Renderer{cache: make(map[string]cel.Program)}
}

// Render scans text for {{ expr }} spans and substitutes each with the
// string form of evaluating expr against context (bound as the CEL variable
// "data"). A `$.field.path` shorthand inside expr is resolved via gjson
// instead of CEL; a bare field read does not need a full expression
// language.
func (r *Renderer) Render(text string, context map[string]interface{}) (string, error) {
	if !ContainsTemplate(text) {
		return text, nil
	}

	var outerErr error
	result := delimiter.ReplaceAllStringFunc(text, func(match string) string {
		if outerErr != nil {
			return match
		}
		expr := strings.TrimSpace(delimiter.FindStringSubmatch(match)[1])

		if strings.HasPrefix(expr, "$.") {
			raw, err := context2JSON(context)
			if err != nil {
				outerErr = errs.Template("context_marshal_failed", "could not marshal template context", err)
				return match
			}
			value := gjson.GetBytes(raw, strings.TrimPrefix(expr, "$."))
			return value.String()
		}

		val, err := r.eval(expr, context)
		if err != nil {
			outerErr = err
			return match
		}
		return fmt.Sprintf("%v", val)
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

func (r *Renderer) eval(expr string, context map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	prg, ok := r.cache[expr]
	r.mu.RUnlock()

	if !ok {
		var err error
		prg, err = r.compile(expr)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[expr] = prg
		r.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{"data": context})
	if err != nil {
		return nil, errs.Template("eval_failed", fmt.Sprintf("template expression %q failed", expr), err)
	}
	return out.Value(), nil
}

func (r *Renderer) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("data", cel.DynType))
	if err != nil {
		return nil, errs.Template("env_failed", "failed to create template expression environment", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errs.Template("compile_failed", fmt.Sprintf("template expression %q did not compile", expr), issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errs.Template("program_failed", fmt.Sprintf("template expression %q could not be programmed", expr), err)
	}
	return prg, nil
}

// CacheSize returns the number of cached compiled expressions, for tests.
func (r *Renderer) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
