package trend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/util"
	"github.com/ppiankov/antibody/internal/worker"
)

// FeedProvider counts entity mentions in a news search feed (RSS or Atom).
// The feed URL template carries a {query} placeholder.
type FeedProvider struct {
	urlTemplate  string
	threshold    float64
	userAgent    string
	maxBodyBytes int64
	client       *http.Client
	parser       *gofeed.Parser
	robots       *util.RobotsChecker // nil skips the robots.txt check
	limiter      *worker.Limiter
	now          func() time.Time
}

// FeedConfig configures a FeedProvider
type FeedConfig struct {
	URLTemplate       string
	Threshold         float64
	UserAgent         string
	MaxBodyBytes      int64
	RequestsPerSecond float64
	Burst             int
	RespectRobots     bool
	Client            *http.Client
}

// FeedConfigFromModel converts the file/env configuration
func FeedConfigFromModel(cfg model.Config) FeedConfig {
	return FeedConfig{
		URLTemplate:       cfg.Trend.FeedURL,
		Threshold:         cfg.Trend.TrendingThreshold,
		UserAgent:         cfg.HTTP.UserAgent,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		RequestsPerSecond: cfg.Trend.RequestsPerSecond,
		Burst:             cfg.Trend.Burst,
		RespectRobots:     cfg.Trend.RespectRobots,
		Client:            util.NewHTTPClient(cfg.Timeouts.Trend, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
	}
}

// NewFeedProvider creates a feed-backed trend provider
func NewFeedProvider(cfg FeedConfig) (*FeedProvider, error) {
	if !strings.Contains(cfg.URLTemplate, "{query}") {
		return nil, model.Invalid("trend feed URL must contain {query}: %q", cfg.URLTemplate)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultTrendingThreshold
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2_000_000
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	p := &FeedProvider{
		urlTemplate:  cfg.URLTemplate,
		threshold:    cfg.Threshold,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		client:       client,
		parser:       gofeed.NewParser(),
		limiter:      worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		now:          time.Now,
	}
	if cfg.RespectRobots {
		p.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return p, nil
}

// EntityVelocity fetches the feed for entity and computes its mention velocity
func (p *FeedProvider) EntityVelocity(ctx context.Context, entity string) (model.TrendSignal, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return model.TrendSignal{}, model.Invalid("entity is required")
	}

	feedURL := strings.ReplaceAll(p.urlTemplate, "{query}", url.QueryEscape(`"`+entity+`"`))

	var crawlDelay time.Duration
	if p.robots != nil {
		allowed, delay, err := p.robots.CanFetch(ctx, feedURL)
		if err != nil {
			return model.TrendSignal{}, model.External("trend feed", err)
		}
		if !allowed {
			return model.TrendSignal{}, model.External("trend feed", fmt.Errorf("blocked by robots.txt: %s", feedURL))
		}
		crawlDelay = delay
	}

	if err := p.limiter.WaitWithDelay(ctx, feedURL, crawlDelay); err != nil {
		return model.TrendSignal{}, model.External("trend feed", err)
	}

	feed, err := p.fetch(ctx, feedURL)
	if err != nil {
		return model.TrendSignal{}, model.External("trend feed", err)
	}

	now := p.now()
	published := make([]time.Time, 0, len(feed.Items))
	for _, item := range feed.Items {
		switch {
		case item.PublishedParsed != nil:
			published = append(published, *item.PublishedParsed)
		case item.UpdatedParsed != nil:
			published = append(published, *item.UpdatedParsed)
		}
	}

	signal := ComputeVelocity(entity, CountWindows(published, now), p.threshold, now)
	logging.Debug("trend signal", "entity", entity, "mentions_24h", signal.Mentions24h, "velocity", signal.VelocityScore)
	return signal, nil
}

func (p *FeedProvider) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: HTTP %d", resp.StatusCode)
	}

	feed, err := p.parser.Parse(io.LimitReader(resp.Body, p.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
