package site

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tailscale/hujson"
)

const dateLayout = "2006-01-02"

// Post is one entry of the blog registry.
type Post struct {
	Title        string `json:"title"`
	Path         string `json:"path"`
	Author       string `json:"author"`
	Date         string `json:"date"`
	Subtitle     string `json:"subtitle,omitempty"`
	PreviewImage string `json:"previewImage,omitempty"`

	published time.Time
}

// Published returns the publish date.
func (p Post) Published() time.Time { return p.published }

// Blog is the post registry ordered newest first.
type Blog struct {
	Posts []Post
}

// LoadBlog reads a blog registry file. A missing file is an empty blog.
func LoadBlog(file string) (*Blog, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return &Blog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blog: %w", err)
	}
	return ParseBlog(data)
}

func ParseBlog(data []byte) (*Blog, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	var raw struct {
		Posts []Post `json:"posts"`
	}
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return nil, fmt.Errorf("invalid blog registry: %w", err)
	}
	for i := range raw.Posts {
		p := &raw.Posts[i]
		t, err := time.Parse(dateLayout, p.Date)
		if err != nil {
			return nil, fmt.Errorf("post %q: invalid date %q: %w", p.Title, p.Date, err)
		}
		p.published = t
		p.Path = CompiledPath(p.Path)
	}
	sort.SliceStable(raw.Posts, func(i, j int) bool {
		return raw.Posts[i].published.After(raw.Posts[j].published)
	})
	return &Blog{Posts: raw.Posts}, nil
}

// PostNav is the blog navigation of one post page.
type PostNav struct {
	Post  Post
	Newer *Post
	Older *Post
}

// Nav returns the navigation for docPath, or false when it is not a post.
func (b *Blog) Nav(docPath string) (PostNav, bool) {
	want := CompiledPath(docPath)
	for i, p := range b.Posts {
		if p.Path != want {
			continue
		}
		nav := PostNav{Post: p}
		if i > 0 {
			nav.Newer = &b.Posts[i-1]
		}
		if i+1 < len(b.Posts) {
			nav.Older = &b.Posts[i+1]
		}
		return nav, true
	}
	return PostNav{}, false
}
