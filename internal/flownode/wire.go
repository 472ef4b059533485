package flownode

import "encoding/json"

// Marshal serializes a NodeOutput to its JSON wire shape.
func Marshal(id string, out NodeOutput) ([]byte, error) {
	return json.Marshal(wireOutput{
		ID:   id,
		Data: out.Data,
		Metadata: wireMetadata{
			Source:      out.Source,
			Destination: out.Destination,
			Route:       out.Route,
			Completed:   out.completed,
		},
	})
}

// Unmarshal deserializes the wire shape back into a NodeOutput. Unknown
// fields are ignored, so payloads from newer writers still parse.
func Unmarshal(payload []byte) (id string, out NodeOutput, err error) {
	var w wireOutput
	if err = json.Unmarshal(payload, &w); err != nil {
		return "", NodeOutput{}, err
	}
	return w.ID, NodeOutput{
		Data:        w.Data,
		Source:      w.Metadata.Source,
		Destination: w.Metadata.Destination,
		Route:       w.Metadata.Route,
		completed:   w.Metadata.Completed,
	}, nil
}
