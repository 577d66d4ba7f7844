package stockimages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zombar/optimizer/models"
)

const pexelsBaseURL = "https://api.pexels.com/v1"

// PexelsClient searches the Pexels photo API.
type PexelsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPexelsClient creates a Pexels client. An empty API key is allowed;
// searches then return no results.
func NewPexelsClient(apiKey string, httpClient *http.Client) *PexelsClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PexelsClient{
		baseURL:    pexelsBaseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *PexelsClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

func (c *PexelsClient) Name() string { return "pexels" }

type pexelsPhoto struct {
	ID           int    `json:"id"`
	Alt          string `json:"alt"`
	Photographer string `json:"photographer"`
	Src          struct {
		Large string `json:"large"`
		Tiny  string `json:"tiny"`
	} `json:"src"`
}

type pexelsSearchResponse struct {
	Photos []pexelsPhoto `json:"photos"`
}

// Search queries Pexels for up to count photos.
func (c *PexelsClient) Search(ctx context.Context, query string, count int) ([]models.ImageResult, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	if count <= 0 {
		count = 3
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d",
		c.baseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed pexelsSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse pexels response: %w", err)
	}

	results := make([]models.ImageResult, 0, len(parsed.Photos))
	for _, p := range parsed.Photos {
		results = append(results, models.ImageResult{
			ID:           strconv.Itoa(p.ID),
			URL:          p.Src.Large,
			ThumbURL:     p.Src.Tiny,
			Description:  p.Alt,
			Photographer: p.Photographer,
			Source:       c.Name(),
		})
	}
	return results, nil
}
