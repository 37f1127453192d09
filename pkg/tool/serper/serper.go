// Package serper implements a web search tool.Tool on the Serper.dev API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/tool"
	"github.com/papercomputeco/folio/pkg/utils"
)

const (
	DefaultBaseURL    = "https://google.serper.dev"
	DefaultNumResults = 5

	// APIKeyEnv is the environment variable holding the API key.
	APIKeyEnv = "SERPER_API_KEY"

	Name = "web_search"
)

// ErrSearch is returned when the search request fails.
var ErrSearch = errors.New("web search failed")

type Config struct {
	APIKey     string
	BaseURL    string
	NumResults int
}

type Tool struct {
	apiKey     string
	baseURL    string
	numResults int
	httpClient *http.Client
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type searchResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func New(c Config) (*Tool, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set %s)", ErrSearch, APIKeyEnv)
	}

	baseURL := strings.TrimSuffix(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	num := c.NumResults
	if num <= 0 {
		num = DefaultNumResults
	}

	return &Tool{
		apiKey:     c.APIKey,
		baseURL:    baseURL,
		numResults: num,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (t *Tool) Name() string {
	return Name
}

func (t *Tool) Description() string {
	return "Search the web for recent or general information that the uploaded document does not cover."
}

// Run returns the answer box, if any, followed by organic results as
// title/link/snippet blocks.
func (t *Tool) Run(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: empty query", ErrSearch)
	}

	body, err := json.Marshal(searchRequest{Q: query, Num: t.numResults})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrSearch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrSearch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())
	req.Header.Set("X-API-KEY", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", ErrSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: serper returned status %d: %s", ErrSearch, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrSearch, err)
	}

	var blocks []string
	if out.AnswerBox != nil {
		if answer := firstNonEmpty(out.AnswerBox.Answer, out.AnswerBox.Snippet); answer != "" {
			blocks = append(blocks, "Answer: "+answer)
		}
	}
	for i, r := range out.Organic {
		if i == t.numResults {
			break
		}
		blocks = append(blocks, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s", r.Title, r.Link, r.Snippet))
	}

	if len(blocks) == 0 {
		return "No web results found.", nil
	}
	return strings.Join(blocks, tool.ResultSeparator), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ tool.Tool = (*Tool)(nil)
