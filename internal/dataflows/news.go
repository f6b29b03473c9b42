package dataflows

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// NewsClient scrapes Google News search results.
type NewsClient struct {
	client *resty.Client
	cache  *CacheManager
}

func NewNewsClient(cacheDir string, cacheEnabled bool) *NewsClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; council/1.0)")

	return &NewsClient{
		client: client,
		cache:  NewCacheManager(filepath.Join(cacheDir, "google_news"), 2*time.Hour, cacheEnabled),
	}
}

// NewsParams bounds a Google News search.
type NewsParams struct {
	Query      string    `json:"query"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	MaxResults int       `json:"max_results"`
}

// Search returns recent headlines matching the query.
func (nc *NewsClient) Search(params NewsParams) ([]*NewsArticle, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 20
	}

	var cached []*NewsArticle
	if nc.cache.Get("google_news", "search", params, &cached) {
		return cached, nil
	}

	searchURL := nc.buildURL(params)

	var result []*NewsArticle
	err := withRetry(3, func() error {
		resp, err := nc.client.R().Get(searchURL)
		if err != nil {
			return fmt.Errorf("fetch google news: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("google news returned HTTP %d", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("parse google news html: %w", err)
		}

		result = parseArticles(doc)
		if len(result) > params.MaxResults {
			result = result[:params.MaxResults]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	nc.cache.Set("google_news", "search", params, result)
	return result, nil
}

func (nc *NewsClient) buildURL(params NewsParams) string {
	query := params.Query
	if !params.StartDate.IsZero() && !params.EndDate.IsZero() {
		query += fmt.Sprintf(" after:%s before:%s",
			params.StartDate.Format("2006-01-02"),
			params.EndDate.Format("2006-01-02"))
	}
	return fmt.Sprintf("https://news.google.com/search?q=%s&hl=en&gl=US&ceid=US:en",
		url.QueryEscape(query))
}

func parseArticles(doc *goquery.Document) []*NewsArticle {
	var articles []*NewsArticle
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("a").First().Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h3, h4").First().Text())
		}
		if title == "" {
			return
		}
		href, _ := s.Find("a").First().Attr("href")
		href = strings.TrimPrefix(href, ".")
		source := strings.TrimSpace(s.Find("div[data-n-tid]").First().Text())

		article := &NewsArticle{
			Title:  title,
			URL:    "https://news.google.com" + href,
			Source: source,
		}
		if dt, ok := s.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, dt); err == nil {
				article.PublishedAt = t
			}
		}
		articles = append(articles, article)
	})
	return articles
}
