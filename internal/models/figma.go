package models

// FigmaCredentials are the options a host passes when initializing the Figma connector.
type FigmaCredentials struct {
	Organization int64  `json:"organization" toml:"organization" yaml:"organization" validate:"required,gt=0"`
	User         string `json:"user" toml:"user" yaml:"user" validate:"required"`
	Password     string `json:"password" toml:"password" yaml:"password" validate:"required"`
}

// SearchResult is a display-ready search hit handed back to the host.
// Snippet is HTML and may be empty.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}
