// Package eraktkosh is a client for the eRaktKosh blood bank portal, the backup data
// source.
package eraktkosh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

const (
	DefaultBaseURL   = "https://eraktkosh.mohfw.gov.in"
	availabilityPath = "/BLDAHIMS/bloodbank/stockAvailability.cnt"
	directoryPath    = "/BLDAHIMS/bloodbank/nearbyBBRed.cnt"
	userAgent        = "Mozilla/5.0 (compatible; BloodAidBackup/1.0)"
)

// ErrCircuitOpen signals the breaker is open after repeated throttling responses.
var ErrCircuitOpen = errors.New("eraktkosh circuit open due to repeated rate limiting")

// Config defines settings for the portal client.
type Config struct {
	BaseURL         string
	Mock            bool
	Timeout         time.Duration
	MaxRetries      int
	RetryWait       time.Duration
	BreakerMax      int
	BreakerCooldown time.Duration
}

// Client fetches blood banks and stock from eRaktKosh, or serves demo data in mock mode.
type Client struct {
	http   *resty.Client
	mock   bool
	logger *zap.Logger

	mu               sync.Mutex
	breakerThreshold int
	breakerCooldown  time.Duration
	consecutiveLimit int
	openUntil        time.Time
}

func New(cfg Config, logger *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = time.Second
	}
	breaker := cfg.BreakerMax
	if breaker <= 0 {
		breaker = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(4*wait).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:             client,
		mock:             cfg.Mock,
		logger:           logger,
		breakerThreshold: breaker,
		breakerCooldown:  cooldown,
	}
}

// Name is the source tag stamped on cached rows.
func (c *Client) Name() string {
	if c.mock {
		return model.SourceERaktKoshMock
	}
	return model.SourceERaktKosh
}

// FetchBloodBanks returns the directory, filtered by state or district when location is set.
func (c *Client) FetchBloodBanks(ctx context.Context, location string) ([]model.RawBankRecord, error) {
	if c.mock {
		return mockFetchBanks(location), nil
	}
	form := map[string]string{}
	if location != "" {
		form["state"] = location
	}
	body, err := c.fetch(ctx, directoryPath, form)
	if err != nil {
		return nil, err
	}
	banks, err := ParseBloodBanks(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse blood bank directory: %w", err)
	}
	c.logger.Debug("fetched blood banks", zap.String("location", location), zap.Int("count", len(banks)))
	return banks, nil
}

// FetchAvailability returns stock lines, optionally filtered by blood group and location.
func (c *Client) FetchAvailability(ctx context.Context, bloodGroup, location string) ([]model.RawAvailabilityRecord, error) {
	if c.mock {
		return mockFetchAvailability(bloodGroup, location), nil
	}
	form := map[string]string{}
	if location != "" {
		form["state"] = location
	}
	if bloodGroup != "" {
		form["bloodGroup"] = bloodGroup
	}
	body, err := c.fetch(ctx, availabilityPath, form)
	if err != nil {
		return nil, err
	}
	rows, err := ParseAvailability(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse stock availability: %w", err)
	}
	c.logger.Debug("fetched availability",
		zap.String("blood_group", bloodGroup),
		zap.String("location", location),
		zap.Int("count", len(rows)))
	return rows, nil
}

// fetch GETs path, or POSTs the search form when it has criteria.
func (c *Client) fetch(ctx context.Context, path string, form map[string]string) ([]byte, error) {
	if c.breakerOpen() {
		return nil, ErrCircuitOpen
	}

	req := c.http.R().SetContext(ctx)
	var (
		resp *resty.Response
		err  error
	)
	if len(form) == 0 {
		resp, err = req.Get(path)
	} else {
		resp, err = req.SetFormData(form).Post(path)
	}
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		c.resetBreaker()
		return resp.Body(), nil
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		if c.tripBreaker() {
			return nil, ErrCircuitOpen
		}
		return nil, fmt.Errorf("eraktkosh status %d for %s", code, path)
	default:
		return nil, fmt.Errorf("eraktkosh status %d for %s", code, path)
	}
}

func (c *Client) breakerOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.openUntil)
}

// tripBreaker counts one throttled response and opens the breaker at the threshold.
func (c *Client) tripBreaker() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveLimit++
	if c.consecutiveLimit < c.breakerThreshold {
		return false
	}
	c.consecutiveLimit = 0
	c.openUntil = time.Now().Add(c.breakerCooldown)
	c.logger.Warn("eraktkosh circuit opened", zap.Duration("cooldown", c.breakerCooldown))
	return true
}

func (c *Client) resetBreaker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveLimit = 0
}
