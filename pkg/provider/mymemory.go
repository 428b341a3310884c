package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"quicktranslator/pkg/logger"
)

const (
	DefaultMyMemoryURL = "https://api.mymemory.translated.net"
	// myMemoryMaxQuery is the largest q the free endpoint accepts, in bytes.
	myMemoryMaxQuery = 500
)

// MyMemoryConfig configures the MyMemory REST provider.
type MyMemoryConfig struct {
	BaseURL string
	Email   string
	Timeout time.Duration
}

// MyMemory translates through the public MyMemory API.
type MyMemory struct {
	baseURL    string
	email      string
	httpClient *http.Client
	logger     *logger.Logger
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
	QuotaFinished   bool        `json:"quotaFinished"`
}

// NewMyMemory creates a MyMemory provider.
func NewMyMemory(cfg MyMemoryConfig, log *logger.Logger) *MyMemory {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultMyMemoryURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &MyMemory{
		baseURL:    baseURL,
		email:      cfg.Email,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("mymemory"),
	}
}

func (m *MyMemory) Name() string { return "mymemory" }

func (m *MyMemory) Translate(ctx context.Context, text, source, target string) (string, error) {
	if len(text) > myMemoryMaxQuery {
		return "", newError(m.Name(), fmt.Errorf("query is %d bytes, limit is %d", len(text), myMemoryMaxQuery))
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", source+"|"+target)
	if m.email != "" {
		q.Set("de", m.email)
	}
	endpoint := m.baseURL + "/get?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", newError(m.Name(), errors.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/json")

	m.logger.Tracef("GET %s|%s (%d bytes)", source, target, len(text))
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", newError(m.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", newError(m.Name(), errors.Wrap(err, "read response"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(m.Name(), fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var res myMemoryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", newError(m.Name(), errors.Wrap(err, "decode response"))
	}

	if status := res.ResponseStatus.String(); status != "" && status != "200" {
		return "", newError(m.Name(), classifyMyMemory(status, res.ResponseDetails))
	}
	if res.QuotaFinished {
		m.logger.Warnf("daily quota finished")
	}

	translated := strings.TrimSpace(html.UnescapeString(res.ResponseData.TranslatedText))
	if translated == "" {
		return "", newError(m.Name(), ErrEmptyResult)
	}
	return translated, nil
}

func classifyMyMemory(status, details string) error {
	upper := strings.ToUpper(details)
	if strings.Contains(upper, "INVALID") && strings.Contains(upper, "LANGUAGE") ||
		strings.Contains(upper, "DISTINCT LANGUAGES") {
		return errors.Wrapf(ErrUnsupportedLanguage, "status %s: %s", status, details)
	}
	return errors.Errorf("status %s: %s", status, details)
}
