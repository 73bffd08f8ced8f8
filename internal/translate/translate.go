// Package translate provides machine translation of event and comment text
// through a LibreTranslate instance, plus the overlay rules deciding which
// text to show for a requested language.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// SupportedLanguages are the translation targets the service accepts.
var SupportedLanguages = map[string]bool{
	"fr": true,
	"en": true,
	"nl": true,
	"de": true,
}

// ErrUnsupportedLanguage reports a target outside SupportedLanguages.
var ErrUnsupportedLanguage = errors.New("translate: unsupported language")

// ErrProvider wraps any failure of the translation backend. Handlers map it
// to 502.
var ErrProvider = errors.New("translate: provider failure")

const requestTimeout = 30 * time.Second

// Client talks to a LibreTranslate server. Identical in-flight requests are
// collapsed so a burst of viewers asking for the same translation costs one
// upstream call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	group      singleflight.Group
}

// NewClient returns a client for the LibreTranslate server at baseURL.
// apiKey may be empty for keyless instances.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate returns text rendered in the target language. Same-language
// requests and empty input short-circuit without touching the provider.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if !SupportedLanguages[target] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, target)
	}
	if text == "" || source == target {
		return text, nil
	}

	key := source + "\x00" + target + "\x00" + text
	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.call(ctx, text, source, target)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) call(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q: text, Source: source, Target: target, Format: "text", APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("translate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, snippet)
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return out.TranslatedText, nil
}
