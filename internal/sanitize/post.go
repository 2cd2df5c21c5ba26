package sanitize

import "encoding/json"

// Post is a validated single post. Fields the model returned besides "post"
// are kept in Extra and written back out by MarshalJSON.
type Post struct {
	Text  string
	Extra map[string]json.RawMessage
}

// MarshalJSON renders the post with its extra fields.
func (p Post) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+1)
	for k, v := range p.Extra {
		out[k] = v
	}
	text, err := json.Marshal(p.Text)
	if err != nil {
		return nil, err
	}
	out["post"] = text
	return json.Marshal(out)
}

// ParsePost validates raw model output as an object with a string "post" field.
func ParsePost(raw string) (*Post, error) {
	text, fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	post, err := requireString(text, fields, "post")
	if err != nil {
		return nil, err
	}

	delete(fields, "post")
	result := &Post{Text: post}
	if len(fields) > 0 {
		result.Extra = fields
	}
	return result, nil
}
