package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/template"
)

func TestRenderPlainTextUnchanged(t *testing.T) {
	r := template.New()
	out, err := r.Render("just a string", nil)
	require.NoError(t, err)
	assert.Equal(t, "just a string", out)
}

func TestRenderCELExpression(t *testing.T) {
	r := template.New()
	out, err := r.Render("hello {{ data.name }}", map[string]interface{}{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderGJSONShorthand(t *testing.T) {
	r := template.New()
	out, err := r.Render("{{ $.user.id }}", map[string]interface{}{"user": map[string]interface{}{"id": "abc123"}})
	require.NoError(t, err)
	assert.Equal(t, "abc123", out)
}

func TestRenderCachesCompiledExpression(t *testing.T) {
	r := template.New()
	_, err := r.Render("{{ data.x }}", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, r.CacheSize())

	_, err = r.Render("{{ data.x }}", map[string]interface{}{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, r.CacheSize())
}

func TestRenderInvalidExpressionIsTemplateError(t *testing.T) {
	r := template.New()
	_, err := r.Render("{{ data. }}", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTemplate))
}

func TestContainsTemplate(t *testing.T) {
	assert.True(t, template.ContainsTemplate("{{ data.x }}"))
	assert.False(t, template.ContainsTemplate("no delimiters here"))
}

// TestRenderFormNonTemplateValuesUnchanged: a non-template form value
// passes through unchanged.
func TestRenderFormNonTemplateValuesUnchanged(t *testing.T) {
	r := template.New()
	form := map[string]interface{}{
		"plain":  "no templating",
		"number": float64(42),
		"flag":   true,
	}
	out, err := r.RenderForm(form, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, form, out)
}

func TestRenderFormDoesNotMutateInput(t *testing.T) {
	r := template.New()
	form := map[string]interface{}{"greeting": "hi {{ data.name }}"}
	out, err := r.RenderForm(form, map[string]interface{}{"name": "sam"})
	require.NoError(t, err)
	assert.Equal(t, "hi sam", out["greeting"])
	assert.Equal(t, "hi {{ data.name }}", form["greeting"], "input map must be left untouched")
}

func TestRenderFormNilIsNil(t *testing.T) {
	r := template.New()
	out, err := r.RenderForm(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRenderFormPropagatesRenderError(t *testing.T) {
	r := template.New()
	_, err := r.RenderForm(map[string]interface{}{"bad": "{{ data. }}"}, map[string]interface{}{})
	require.Error(t, err)
}
