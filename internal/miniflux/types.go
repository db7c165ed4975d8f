package miniflux

// entriesResponse is the raw response from GET /v1/entries.
type entriesResponse struct {
	Total   int        `json:"total"`
	Entries []apiEntry `json:"entries"`
}

type apiEntry struct {
	ID          int64    `json:"id"`
	FeedID      int64    `json:"feed_id"`
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	Content     string   `json:"content"`
	PublishedAt string   `json:"published_at"`
	Starred     bool     `json:"starred"`
	Tags        []string `json:"tags"`
	Feed        apiFeed  `json:"feed"`
}

type apiFeed struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Category *apiCategory `json:"category"`
}

type apiCategory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// updateEntriesRequest is the body of PUT /v1/entries.
type updateEntriesRequest struct {
	EntryIDs []int64 `json:"entry_ids"`
	Status   string  `json:"status"`
}
