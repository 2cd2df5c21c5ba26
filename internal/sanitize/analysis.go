package sanitize

import (
	"encoding/json"
	"fmt"
)

// Variant is one styled post in an analysis.
type Variant struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Analysis is the multi-variant result: an image description plus posts.
type Analysis struct {
	Description string    `json:"description"`
	Posts       []Variant `json:"posts"`
}

// ParseAnalysis validates raw model output as {description, posts: [{type, text}]}
// with at least one post.
func ParseAnalysis(raw string) (*Analysis, error) {
	text, fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	description, err := requireString(text, fields, "description")
	if err != nil {
		return nil, err
	}

	rawPosts, ok := fields["posts"]
	if !ok {
		return nil, &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: `missing "posts" field`}
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(rawPosts, &entries); err != nil || entries == nil {
		return nil, &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: `"posts" must be an array of objects`}
	}
	if len(entries) == 0 {
		return nil, &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: `"posts" must not be empty`}
	}

	analysis := &Analysis{Description: description, Posts: make([]Variant, 0, len(entries))}
	for i, entry := range entries {
		if entry == nil {
			return nil, &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: fmt.Sprintf("posts[%d] must be an object", i)}
		}
		kind, err := requireString(text, entry, "type")
		if err != nil {
			return nil, indexed(err, i)
		}
		body, err := requireString(text, entry, "text")
		if err != nil {
			return nil, indexed(err, i)
		}
		analysis.Posts = append(analysis.Posts, Variant{Type: kind, Text: body})
	}
	return analysis, nil
}

func indexed(err error, i int) error {
	if perr, ok := err.(*ParseError); ok {
		perr.Reason = fmt.Sprintf("posts[%d]: %s", i, perr.Reason)
		return perr
	}
	return err
}
