package urlaudit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	vt "github.com/VirusTotal/vt-go"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/logger"
)

// Default settings. The rate limit matches the public API's free tier and
// the cache TTL is in seconds.
const (
	DefaultRateLimitPerMinute = 4
	DefaultRetryCount         = 3
	DefaultRetryDelay         = 5 * time.Second
	DefaultResultCacheTTL     = 3600
)

// Verdict summarizes VirusTotal's last analysis of a URL.
type Verdict struct {
	URL          string    `json:"url"`
	Malicious    int64     `json:"malicious"`
	Suspicious   int64     `json:"suspicious"`
	Harmless     int64     `json:"harmless"`
	Undetected   int64     `json:"undetected"`
	Reputation   int64     `json:"reputation"`
	LastAnalysis time.Time `json:"last_analysis,omitempty"`
	Known        bool      `json:"known"`
}

// Flagged reports whether any engine considered the URL malicious or suspicious.
func (v Verdict) Flagged() bool {
	return v.Malicious > 0 || v.Suspicious > 0
}

// Checker looks up the reputation of a URL.
type Checker interface {
	CheckURL(ctx context.Context, rawURL string) (*Verdict, error)
}

// ClientConfig holds configuration for the VirusTotal client
type ClientConfig struct {
	APIKey          string
	RateLimitPerMin int
	RetryCount      int
	RetryDelay      time.Duration
	ResultCacheTTL  int
}

// DefaultClientConfig returns a default configuration for the client
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RateLimitPerMin: DefaultRateLimitPerMinute,
		RetryCount:      DefaultRetryCount,
		RetryDelay:      DefaultRetryDelay,
		ResultCacheTTL:  DefaultResultCacheTTL,
	}
}

type cachedVerdict struct {
	verdict   *Verdict
	timestamp time.Time
}

// Client is a rate-limited, retrying, caching VirusTotal URL checker.
type Client struct {
	vtClient *vt.Client
	config   ClientConfig

	// lookup fetches a verdict from the API; replaced in tests
	lookup func(ctx context.Context, rawURL string) (*Verdict, error)

	mutex        sync.Mutex
	windowStart  time.Time
	requestCount int

	cacheMutex sync.RWMutex
	cache      map[string]cachedVerdict
}

var _ Checker = (*Client)(nil)

// NewClient creates a VirusTotal client. An API key is required.
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: VirusTotal API key is required", errors.ErrAPIKeyMissing)
	}
	if config.RateLimitPerMin <= 0 {
		config.RateLimitPerMin = DefaultRateLimitPerMinute
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}

	c := &Client{
		vtClient:    vt.NewClient(config.APIKey),
		config:      config,
		windowStart: time.Now().Add(-time.Minute),
		cache:       make(map[string]cachedVerdict),
	}
	c.lookup = c.fetch

	logger.LogInfo("VirusTotal client initialized", map[string]interface{}{
		"rateLimit": config.RateLimitPerMin,
		"retries":   config.RetryCount,
	})
	return c, nil
}

// urlID is the identifier VirusTotal uses for a URL object.
func urlID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// CheckURL returns the cached or freshly fetched verdict for rawURL.
func (c *Client) CheckURL(ctx context.Context, rawURL string) (*Verdict, error) {
	if v, ok := c.cached(rawURL); ok {
		logger.LogDebug("Retrieved URL verdict from cache", map[string]interface{}{"url": rawURL})
		return v, nil
	}

	var verdict *Verdict
	err := c.executeWithRetry(ctx, "url_lookup:"+rawURL, func() error {
		var err error
		verdict, err = c.lookup(ctx, rawURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.store(rawURL, verdict)
	return verdict, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Verdict, error) {
	obj, err := c.vtClient.GetObject(vt.URL("urls/%s", urlID(rawURL)))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			logger.LogDebug("URL not found in VirusTotal database", map[string]interface{}{"url": rawURL})
			return &Verdict{URL: rawURL}, nil
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrAPICommunicationError, err.Error())
	}

	v := &Verdict{URL: rawURL, Known: true}
	v.Malicious, _ = obj.GetInt64("last_analysis_stats.malicious")
	v.Suspicious, _ = obj.GetInt64("last_analysis_stats.suspicious")
	v.Harmless, _ = obj.GetInt64("last_analysis_stats.harmless")
	v.Undetected, _ = obj.GetInt64("last_analysis_stats.undetected")
	v.Reputation, _ = obj.GetInt64("reputation")
	if t, err := obj.GetTime("last_analysis_date"); err == nil {
		v.LastAnalysis = t
	}
	return v, nil
}

// checkRateLimit returns how long to wait before the next request may be sent.
func (c *Client) checkRateLimit() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(c.windowStart)
	if elapsed >= time.Minute {
		c.windowStart = now
		c.requestCount = 1
		return 0
	}

	if c.requestCount >= c.config.RateLimitPerMin {
		waitTime := time.Minute - elapsed
		logger.LogInfo("Rate limit reached, throttling requests", map[string]interface{}{
			"waitTime": waitTime.String(),
		})
		return waitTime
	}

	c.requestCount++
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// executeWithRetry runs fn under the rate limit, retrying failures.
func (c *Client) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		for {
			waitTime := c.checkRateLimit()
			if waitTime == 0 {
				break
			}
			if err := sleep(ctx, waitTime); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		logger.LogWarn(fmt.Sprintf("VirusTotal API request failed (attempt %d/%d): %s",
			attempt+1, c.config.RetryCount+1, operation), map[string]interface{}{
			"error": err.Error(),
		})

		if attempt < c.config.RetryCount {
			if err := sleep(ctx, c.config.RetryDelay); err != nil {
				return err
			}
		}
	}

	logger.LogError(fmt.Sprintf("VirusTotal API request failed after %d attempts: %s",
		c.config.RetryCount+1, operation), lastErr, nil)
	return lastErr
}

func (c *Client) cached(key string) (*Verdict, bool) {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) > time.Duration(c.config.ResultCacheTTL)*time.Second {
		return nil, false
	}
	return entry.verdict, true
}

func (c *Client) store(key string, v *Verdict) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	c.cache[key] = cachedVerdict{verdict: v, timestamp: time.Now()}
}
