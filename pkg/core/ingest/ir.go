package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ==================== IR Document Discovery ====================

// Document kinds recognized on investor relations pages.
const (
	DocAnnualReport    = "annual_report"
	DocQuarterlyReport = "quarterly_report"
	DocOther           = "other"
)

// IRDocument is one PDF discovered on an investor relations page.
type IRDocument struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

// annualKeywords and quarterlyKeywords classify a link by its visible text
// and target path, lowercased. Quarterly terms win over annual ones so
// "Q3 annual update" style titles land on the more specific kind.
var (
	annualKeywords    = []string{"annual report", "annual-report", "jaarverslag", "annual"}
	quarterlyKeywords = []string{"quarterly", "interim", "half-year", "half year", "q1", "q2", "q3", "q4"}
)

// IRScraper walks investor relations pages and collects links to published
// report PDFs. It is best effort; a page that fails to load is skipped.
type IRScraper struct {
	httpClient *http.Client
}

func NewIRScraper() *IRScraper {
	return &IRScraper{httpClient: &http.Client{Timeout: defaultTimeout}}
}

// Discover fetches each page and returns every PDF link found, classified
// and deduplicated by resolved URL.
func (s *IRScraper) Discover(ctx context.Context, pages []string) ([]IRDocument, error) {
	var docs []IRDocument
	seen := make(map[string]bool)
	var lastErr error

	for _, page := range pages {
		found, err := s.scrapePage(ctx, page)
		if err != nil {
			lastErr = err
			continue
		}
		for _, d := range found {
			if seen[d.URL] {
				continue
			}
			seen[d.URL] = true
			docs = append(docs, d)
		}
	}

	if len(docs) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no documents discovered: %w", lastErr)
	}
	return docs, nil
}

func (s *IRScraper) scrapePage(ctx context.Context, page string) ([]IRDocument, error) {
	base, err := url.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("invalid IR page url %s: %w", page, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch IR page %s: %w", page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IR page %s returned status %d", page, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse IR page %s: %w", page, err)
	}

	var found []IRDocument
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = ref.Path[strings.LastIndex(ref.Path, "/")+1:]
		}
		found = append(found, IRDocument{
			Title: title,
			URL:   base.ResolveReference(ref).String(),
			Kind:  classifyDocument(title, href),
		})
	})
	return found, nil
}

func classifyDocument(title, href string) string {
	text := strings.ToLower(title + " " + href)
	for _, kw := range quarterlyKeywords {
		if strings.Contains(text, kw) {
			return DocQuarterlyReport
		}
	}
	for _, kw := range annualKeywords {
		if strings.Contains(text, kw) {
			return DocAnnualReport
		}
	}
	return DocOther
}
