package template

// RenderForm scans every string-valued entry of form for template
// delimiters and renders it against context, returning a new map; the input
// map is left untouched. Values without delimiters, and non-string values,
// pass through verbatim.
func (r *Renderer) RenderForm(form map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	if form == nil {
		return nil, nil
	}
	out := make(map[string]interface{}, len(form))
	for k, v := range form {
		s, ok := v.(string)
		if !ok || !ContainsTemplate(s) {
			out[k] = v
			continue
		}
		rendered, err := r.Render(s, context)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}
