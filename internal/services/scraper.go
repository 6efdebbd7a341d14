package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/pkg/httputil"
)

// ---------------------------------------------------------------------------
// ScraperAPI Listing Scraper
// Pulls structured listing data (address, price, beds, baths, photos) from a
// listing page URL through ScraperAPI's autoparse endpoint, so customers can
// prefill the property form from a portal link.
// ---------------------------------------------------------------------------

const scraperDefaultBaseURL = "https://api.scraperapi.com"

// ScraperService fetches and normalizes listing pages.
type ScraperService struct {
	apiKey  string
	baseURL string
	client  *httputil.RetryClient
}

func NewScraperService(apiKey string) *ScraperService {
	return &ScraperService{
		apiKey:  apiKey,
		baseURL: scraperDefaultBaseURL,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 70 * time.Second}, // ScraperAPI holds the connection while it renders
			httputil.DefaultRetryConfig(),
		),
	}
}

// NewScraperServiceWithBaseURL points the client at a non-default host.
func NewScraperServiceWithBaseURL(apiKey, baseURL string) *ScraperService {
	s := NewScraperService(apiKey)
	s.baseURL = baseURL
	return s
}

// scrapedListing is the normalized autoparse payload for property portals.
type scrapedListing struct {
	Address   string   `json:"address"`
	Price     string   `json:"price"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	Features  []string `json:"features"`
	Images    []string `json:"images"`
	AgentName string   `json:"agent_name"`
}

// ScrapeResult carries the normalized property plus its photo URLs.
type ScrapeResult struct {
	Property models.PropertyDetails
	Photos   []string
}

// ScrapeListing fetches a listing page and returns the structured property
// data. The listing URL is passed through ScraperAPI, which handles
// rendering and bot mitigation on the portal side.
func (s *ScraperService) ScrapeListing(ctx context.Context, listingURL string) (*ScrapeResult, error) {
	if _, err := url.ParseRequestURI(listingURL); err != nil {
		return nil, fmt.Errorf("invalid listing URL: %w", err)
	}

	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("url", listingURL)
	q.Set("autoparse", "true")

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	log.Printf("[Scraper] Fetching listing %s", listingURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ScraperAPI returned status %d: %s", resp.StatusCode, string(body))
	}

	var listing scrapedListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse scraped listing: %w", err)
	}

	if listing.Address == "" && len(listing.Images) == 0 {
		return nil, fmt.Errorf("listing page produced no usable data")
	}

	log.Printf("[Scraper] Parsed listing (address=%q, %d photos)", listing.Address, len(listing.Images))

	return &ScrapeResult{
		Property: models.PropertyDetails{
			Address:   listing.Address,
			Price:     listing.Price,
			Bedrooms:  listing.Bedrooms,
			Bathrooms: listing.Bathrooms,
			Features:  listing.Features,
			Agent:     models.AgentBranding{Name: listing.AgentName},
		},
		Photos: listing.Images,
	}, nil
}
