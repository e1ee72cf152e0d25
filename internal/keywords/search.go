package keywords

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
)

// Searcher looks up articles and images for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxArticles, maxImages int) ([]protocol.Article, []protocol.Image, error)
}

// SearchClient queries a SearXNG-compatible JSON search API.
type SearchClient struct {
	endpoint string
	http     *http.Client
}

func NewSearchClient(endpoint string, timeout time.Duration) *SearchClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearchClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Results []struct {
		Title        string `json:"title"`
		URL          string `json:"url"`
		Content      string `json:"content"`
		ImgSrc       string `json:"img_src"`
		ThumbnailSrc string `json:"thumbnail_src"`
	} `json:"results"`
}

// Search runs one text query and one image query. Any failure aborts the whole search.
func (c *SearchClient) Search(ctx context.Context, query string, maxArticles, maxImages int) ([]protocol.Article, []protocol.Image, error) {
	var articles []protocol.Article
	var images []protocol.Image
	if maxArticles > 0 {
		resp, err := c.query(ctx, query, "general")
		if err != nil {
			return nil, nil, err
		}
		for _, r := range resp.Results {
			if len(articles) == maxArticles {
				break
			}
			articles = append(articles, protocol.Article{Title: r.Title, Link: r.URL, Snippet: r.Content})
		}
	}
	if maxImages > 0 {
		resp, err := c.query(ctx, query, "images")
		if err != nil {
			return nil, nil, err
		}
		for _, r := range resp.Results {
			if len(images) == maxImages {
				break
			}
			thumb := r.ThumbnailSrc
			if thumb == "" {
				thumb = r.ImgSrc
			}
			images = append(images, protocol.Image{Title: r.Title, Image: r.ImgSrc, Thumbnail: thumb, URL: r.URL})
		}
	}
	return articles, images, nil
}

func (c *SearchClient) query(ctx context.Context, query, category string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search http %d for category %s", resp.StatusCode, category)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
