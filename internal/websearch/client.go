// Package websearch is the freshness fallback: a live web lookup used when
// the knowledge index cannot ground a query with enough confidence.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/campuskit/advisor/internal/retrieval"
)

// Searcher returns summarized, cited snippets for a query. Implementations
// never propagate failures: timeouts and provider errors collapse to an
// empty result set so the turn degrades instead of stalling.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []retrieval.Result
}

// Client calls a Serper-compatible search API.
type Client struct {
	apiKey  string
	url     string
	timeout time.Duration
	http    *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		url:     url,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search performs the live lookup. The hard timeout is enforced here; any
// error is logged and absorbed as "no results".
func (c *Client) Search(ctx context.Context, query string, maxResults int) []retrieval.Result {
	if maxResults <= 0 {
		maxResults = 5
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(searchRequest{Query: query, Num: maxResults})
	if err != nil {
		log.Printf("websearch: marshal request: %v", err)
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		log.Printf("websearch: create request: %v", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		log.Printf("websearch: lookup failed: %v", err)
		return nil
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Printf("websearch: provider status %d", res.StatusCode)
		return nil
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		log.Printf("websearch: decode response: %v", err)
		return nil
	}

	now := time.Now().UTC()
	results := make([]retrieval.Result, 0, maxResults)
	for i, item := range out.Organic {
		if i >= maxResults {
			break
		}
		if item.Snippet == "" {
			continue
		}
		results = append(results, retrieval.Result{
			Passage:     item.Snippet,
			SourceRef:   item.Link,
			SourceKind:  retrieval.KindWeb,
			Score:       rankScore(i),
			RetrievedAt: now,
		})
	}
	return results
}

// rankScore maps result position to a mid-band relevance score. Web snippets
// have no similarity score of their own, so they slot in below a strong index
// match and above noise.
func rankScore(position int) float64 {
	score := 0.75 - 0.1*float64(position)
	if score < 0.1 {
		score = 0.1
	}
	return score
}

// Disabled is used when no search API key is configured.
type Disabled struct{}

func (Disabled) Search(context.Context, string, int) []retrieval.Result { return nil }
