package model

// MetadataSignal is the top match returned by the metadata index.
// A nil *MetadataSignal means the index produced nothing usable.
type MetadataSignal struct {
	Title         string `json:"title"`
	DOI           string `json:"doi,omitempty"`
	URL           string `json:"url,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// GroundingSignal is the outcome of an open-web grounding query
type GroundingSignal struct {
	Verified bool   `json:"verified"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}
