package installer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/resilience"
)

// DownloaderConfig tunes the artifact client
type DownloaderConfig struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond limits outbound requests; zero means unlimited.
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultDownloaderConfig returns production settings
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:           10 * time.Minute,
		Retries:           3,
		RetryWaitMin:      time.Second,
		RetryWaitMax:      30 * time.Second,
		RequestsPerSecond: 2,
		UserAgent:         "HomePanel-Installer/1.0",
	}
}

// Downloader fetches server artifacts over HTTP. Each upstream host gets
// its own circuit breaker so one flaky mirror does not block the others.
type Downloader struct {
	client   *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewDownloader creates a downloader with retries and rate limiting
func NewDownloader(cfg DownloaderConfig, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Download breaker changed state",
				zap.String("host", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Downloader{
		client:   client,
		limiter:  limiter,
		breakers: breakers,
		logger:   logger,
	}
}

// WithMetrics adds byte accounting
func (d *Downloader) WithMetrics(m *monitoring.Metrics) *Downloader {
	d.metrics = m
	return d
}

// Download streams rawURL into dest and returns the number of bytes
// written. progress, if set, receives whole percentages as they change
// when the server announces a length. A failed download leaves no file.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string, progress func(pct int)) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0, fmt.Errorf("invalid artifact url %q", rawURL)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	var written int64
	err = d.breakers.For(u.Host).Do(ctx, func(ctx context.Context) error {
		n, err := d.fetch(ctx, rawURL, dest, progress)
		written = n
		return err
	})
	if err != nil {
		os.Remove(dest)
		return 0, err
	}

	if d.metrics != nil {
		d.metrics.AddDownloadBytes(written)
	}
	d.logger.Info("Artifact downloaded",
		zap.String("url", rawURL),
		zap.String("dest", dest),
		zap.Int64("bytes", written),
	)
	return written, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL, dest string, progress func(int)) (int64, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return 0, fmt.Errorf("download failed: HTTP %d", resp.StatusCode())
	}

	tmp := dest + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	var total int64 = -1
	if resp.RawResponse != nil {
		total = resp.RawResponse.ContentLength
	}
	counter := &progressWriter{w: file, total: total, report: progress, last: -1}

	n, copyErr := io.Copy(counter, body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr != nil {
			return 0, fmt.Errorf("download interrupted: %w", copyErr)
		}
		return 0, fmt.Errorf("failed to write file: %w", closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	if progress != nil && counter.last < 100 {
		progress(100)
	}
	return n, nil
}

type progressWriter struct {
	w      io.Writer
	n      int64
	total  int64
	report func(int)
	last   int
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	if p.report != nil && p.total > 0 {
		if pct := int(p.n * 100 / p.total); pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
