package karakeep

import (
	"bytes"
	"encoding/json"
)

// apiResponse is the raw response from GET /api/v1/bookmarks.
type apiResponse struct {
	Bookmarks  []apiBookmark `json:"bookmarks"`
	NextCursor *string       `json:"nextCursor"`
}

type apiBookmark struct {
	ID          string     `json:"id"`
	CreatedAt   string     `json:"createdAt"`
	Title       *string    `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Note        *string    `json:"note"`
	Archived    bool       `json:"archived"`
	Favourited  bool       `json:"favourited"`
	ArchiveURL  *string    `json:"archiveUrl"`
	FaviconURL  *string    `json:"faviconUrl"`
	Tags        apiTags    `json:"tags"`
	Content     apiContent `json:"content"`
}

// apiContent is the nested content object; link bookmarks carry their URL,
// title and description here rather than at the top level.
type apiContent struct {
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Text        string  `json:"text"`
	HTMLContent string  `json:"htmlContent"`
	Favicon     *string `json:"favicon"`
}

// apiTags accepts both [{"name": "..."}] and ["..."].
type apiTags []string

func (t *apiTags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*t = names
		return nil
	}

	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return err
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		if o.Name != "" {
			out = append(out, o.Name)
		}
	}
	*t = out
	return nil
}
