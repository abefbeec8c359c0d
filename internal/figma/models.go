package figma

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a backend identifier. The API sends ids as JSON strings or numbers.
type ID string

// UnmarshalJSON accepts both quoted and bare identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Creator is the owner of a file.
type Creator struct {
	Handle string `json:"handle"`
}

// File is a design file search hit.
type File struct {
	Creator      Creator `json:"creator"`
	Name         string  `json:"name"`
	ThumbnailURL string  `json:"thumbnail_url"`
	URL          string  `json:"url"`
}

// Project is a folder search hit.
type Project struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	FileCount   int    `json:"file_count"`
	RecentFiles []File `json:"recent_files"`
}

// Team is a team search hit.
type Team struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// searchEnvelope is the response body of every search endpoint.
type searchEnvelope[T any] struct {
	Meta struct {
		Results []T `json:"results"`
	} `json:"meta"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}
