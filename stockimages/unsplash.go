package stockimages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zombar/optimizer/models"
)

const unsplashBaseURL = "https://api.unsplash.com"

// UnsplashClient searches the Unsplash photo API.
type UnsplashClient struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// NewUnsplashClient creates an Unsplash client. An empty access key is
// allowed; searches then return no results.
func NewUnsplashClient(accessKey string, httpClient *http.Client) *UnsplashClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &UnsplashClient{
		baseURL:    unsplashBaseURL,
		accessKey:  accessKey,
		httpClient: httpClient,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *UnsplashClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

func (c *UnsplashClient) Name() string { return "unsplash" }

type unsplashPhoto struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	AltDesc     string `json:"alt_description"`
	URLs        struct {
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

type unsplashSearchResponse struct {
	Results []unsplashPhoto `json:"results"`
}

// Search queries Unsplash for up to count photos.
func (c *UnsplashClient) Search(ctx context.Context, query string, count int) ([]models.ImageResult, error) {
	if c.accessKey == "" {
		return nil, nil
	}
	if count <= 0 {
		count = 3
	}

	endpoint := fmt.Sprintf("%s/search/photos?query=%s&per_page=%d",
		c.baseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unsplash request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed unsplashSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse unsplash response: %w", err)
	}

	results := make([]models.ImageResult, 0, len(parsed.Results))
	for _, p := range parsed.Results {
		desc := p.Description
		if desc == "" {
			desc = p.AltDesc
		}
		results = append(results, models.ImageResult{
			ID:           p.ID,
			URL:          p.URLs.Regular,
			ThumbURL:     p.URLs.Thumb,
			Description:  desc,
			Photographer: p.User.Name,
			Source:       c.Name(),
		})
	}
	return results, nil
}
