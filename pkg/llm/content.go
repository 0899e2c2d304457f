package llm

import (
	"encoding/json"
	"fmt"
)

// PartKind discriminates the variants of a ContentPart.
type PartKind string

const (
	PartKindText  PartKind = "text"
	PartKindImage PartKind = "image_url"
)

// ContentPart is one element of multimodal message content. Exactly one of
// Text/ImageURL is populated, according to Kind.
type ContentPart struct {
	Kind     PartKind
	Text     string
	ImageURL string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartKindText, Text: text}
}

// ImagePart builds an image content part referencing the given URL.
// Data URLs (base64-encoded images) are accepted as well.
func ImagePart(url string) ContentPart {
	return ContentPart{Kind: PartKindImage, ImageURL: url}
}

// Content is the payload of a Message: either plain text or an ordered
// sequence of multimodal parts. The zero value is empty text. Part order is
// preserved through encoding because text/image interleaving carries prompting
// semantics for the provider.
type Content struct {
	text  string
	parts []ContentPart
	multi bool
}

// Text builds plain text content.
func Text(text string) Content {
	return Content{text: text}
}

// Multimodal builds content from an ordered sequence of parts.
func Multimodal(parts ...ContentPart) Content {
	return Content{parts: parts, multi: true}
}

// IsText reports whether the content is plain text.
func (c Content) IsText() bool { return !c.multi }

// Text returns the plain text payload, or "" for multimodal content.
func (c Content) Text() string {
	if c.multi {
		return ""
	}
	return c.text
}

// Parts returns the ordered multimodal parts, or nil for plain text content.
func (c Content) Parts() []ContentPart {
	if !c.multi {
		return nil
	}
	out := make([]ContentPart, len(c.parts))
	copy(out, c.parts)
	return out
}

// wirePart is the provider-facing shape of a single content part.
type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

// MarshalJSON encodes plain text as a JSON string and multimodal content as
// an ordered array of typed part objects.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.multi {
		return json.Marshal(c.text)
	}
	parts := make([]wirePart, 0, len(c.parts))
	for _, p := range c.parts {
		switch p.Kind {
		case PartKindText:
			parts = append(parts, wirePart{Type: "text", Text: p.Text})
		case PartKindImage:
			parts = append(parts, wirePart{Type: "image_url", ImageURL: &wireImageURL{URL: p.ImageURL}})
		default:
			return nil, fmt.Errorf("unknown content part kind %q", p.Kind)
		}
	}
	return json.Marshal(parts)
}

// UnmarshalJSON accepts both wire shapes: a scalar string or an array of
// typed part objects.
func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = Text(text)
		return nil
	}

	var raw []wirePart
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content must be a string or an array of parts: %w", err)
	}
	parts := make([]ContentPart, 0, len(raw))
	for _, p := range raw {
		switch p.Type {
		case "text":
			parts = append(parts, TextPart(p.Text))
		case "image_url":
			if p.ImageURL == nil {
				return fmt.Errorf("image_url part is missing its url object")
			}
			parts = append(parts, ImagePart(p.ImageURL.URL))
		default:
			return fmt.Errorf("unknown content part type %q", p.Type)
		}
	}
	*c = Multimodal(parts...)
	return nil
}
