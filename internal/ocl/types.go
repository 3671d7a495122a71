package ocl

import (
	"encoding/json"
	"strings"
)

// Concept is the subset of a concept record this tool reads or writes.
type Concept struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	DisplayName string  `json:"display_name"`
	ExternalID  *string `json:"external_id"`
	Names       []Name  `json:"names,omitempty"`
}

// Name is one entry of a concept's names list. The raw object is kept so
// update payloads echo every field the server sent.
type Name struct {
	Name string
	Raw  json.RawMessage
}

func (n *Name) UnmarshalJSON(data []byte) error {
	var fields struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	n.Name = fields.Name
	n.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (n Name) MarshalJSON() ([]byte, error) {
	if len(n.Raw) > 0 {
		return n.Raw, nil
	}
	return json.Marshal(map[string]string{"name": n.Name})
}

// NameList joins the concept's names for display.
func (c Concept) NameList() string {
	parts := make([]string, 0, len(c.Names))
	for _, n := range c.Names {
		if name := strings.TrimSpace(n.Name); name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}

// Label returns the display name, falling back to the joined names.
func (c Concept) Label() string {
	if name := strings.TrimSpace(c.DisplayName); name != "" {
		return name
	}
	return c.NameList()
}

// CurrentExternalID returns the external identifier as a string, empty when absent.
func (c Concept) CurrentExternalID() string {
	if c.ExternalID == nil {
		return ""
	}
	return *c.ExternalID
}

// UpdateRequest is the body sent when replacing an external identifier.
type UpdateRequest struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Names      []Name `json:"names"`
}

// page is the paginated envelope returned by listing endpoints.
type page struct {
	Results *[]Concept `json:"results"`
	Next    *string    `json:"next"`
}
