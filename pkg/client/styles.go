package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StyleID identifies a rendering style. The backend may send it as a JSON
// number (261) or string ("261"); both decode to the same StyleID.
type StyleID string

// UnmarshalJSON accepts numbers and strings.
func (id *StyleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("style id: %w", err)
		}
		*id = StyleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("style id: %w", err)
	}
	*id = StyleID(n.String())
	return nil
}

// String returns the id as a string.
func (id StyleID) String() string {
	return string(id)
}

// Style is one entry of the backend's style catalog.
type Style struct {
	ID   StyleID `json:"id"`
	Name string  `json:"name"`
}

type stylesResponse struct {
	Success bool    `json:"success"`
	Styles  []Style `json:"styles"`
	Error   string  `json:"error,omitempty"`
}

// ImageResponse is the body of /preview and /generate.
type ImageResponse struct {
	Success bool   `json:"success"`
	DataURL string `json:"dataUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Text    string  `json:"text"`
	StyleID StyleID `json:"styleId"`
}
