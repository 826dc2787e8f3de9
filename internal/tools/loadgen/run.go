// Package loadgen drives synthetic traffic against a running auth API so
// dashboards and alerting can be exercised outside production.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
	Elapsed       time.Duration
}

type scenario func(ctx context.Context, c *client) (int, error)

// Run generates traffic for cfg.Duration and reports aggregate outcomes.
// A non-2xx response is not a failure; only transport errors are.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("loadgen: base URL required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	profile := normalizeProfile(cfg.Profile)
	scenarios := scenariosForProfile(profile)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu     sync.Mutex
		result = &Result{StatusClasses: make(map[string]int)}
		rng    = rand.New(rand.NewSource(cfg.Seed))
	)
	nextScenario := func() scenario {
		mu.Lock()
		defer mu.Unlock()
		return scenarios[rng.Intn(len(scenarios))]
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()

	work := make(chan scenario)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Concurrency; i++ {
		c := newClient(cfg.BaseURL, cfg.Seed+int64(i))
		g.Go(func() error {
			for sc := range work {
				status, err := sc(gctx, c)
				mu.Lock()
				result.TotalRequests++
				if err != nil {
					result.Failures++
				} else {
					result.StatusClasses[classifyStatusClass(status)]++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	start := time.Now()
feed:
	for {
		select {
		case <-runCtx.Done():
			break feed
		case <-ticker.C:
			select {
			case work <- nextScenario():
			case <-runCtx.Done():
				break feed
			}
		}
	}
	close(work)
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func normalizeProfile(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	switch p {
	case "auth", "reset", "health", "mixed":
		return p
	default:
		return "mixed"
	}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func scenariosForProfile(profile string) []scenario {
	switch profile {
	case "auth":
		return []scenario{registerLoginFlow, badLogin, refreshFlow}
	case "reset":
		return []scenario{forgotPassword, badResetToken}
	case "health":
		return []scenario{healthLive, healthReady}
	default:
		return []scenario{healthLive, registerLoginFlow, badLogin, refreshFlow, forgotPassword}
	}
}

type client struct {
	base string
	http *http.Client
	rng  *rand.Rand
	mu   sync.Mutex
}

func newClient(base string, seed int64) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (c *client) email() string {
	c.mu.Lock()
	n := c.rng.Int63()
	c.mu.Unlock()
	return fmt.Sprintf("loadgen-%d@example.test", n)
}

func (c *client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func (c *client) get(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func healthLive(ctx context.Context, c *client) (int, error) {
	return c.get(ctx, "/health/live")
}

func healthReady(ctx context.Context, c *client) (int, error) {
	return c.get(ctx, "/health/ready")
}

func registerLoginFlow(ctx context.Context, c *client) (int, error) {
	email := c.email()
	status, _, err := c.post(ctx, "/api/auth/register", map[string]string{
		"email":    email,
		"password": "loadgen-password",
		"name":     "Load Gen",
	})
	if err != nil || status != http.StatusCreated {
		return status, err
	}
	status, _, err = c.post(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": "loadgen-password",
	})
	return status, err
}

func badLogin(ctx context.Context, c *client) (int, error) {
	status, _, err := c.post(ctx, "/api/auth/login", map[string]string{
		"email":    "nobody@example.test",
		"password": "wrong-password",
	})
	return status, err
}

func refreshFlow(ctx context.Context, c *client) (int, error) {
	email := c.email()
	status, body, err := c.post(ctx, "/api/auth/register", map[string]string{
		"email":    email,
		"password": "loadgen-password",
		"name":     "Load Gen",
	})
	if err != nil || status != http.StatusCreated {
		return status, err
	}
	var envelope struct {
		Data struct {
			Tokens struct {
				Refresh string `json:"refresh"`
			} `json:"tokens"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return status, nil
	}
	status, _, err = c.post(ctx, "/api/auth/refresh", map[string]string{
		"refreshToken": envelope.Data.Tokens.Refresh,
	})
	return status, err
}

func forgotPassword(ctx context.Context, c *client) (int, error) {
	status, _, err := c.post(ctx, "/api/auth/forgot-password", map[string]string{
		"email": c.email(),
	})
	return status, err
}

func badResetToken(ctx context.Context, c *client) (int, error) {
	status, _, err := c.post(ctx, "/api/auth/reset-password", map[string]string{
		"token":       "0000000000000000000000000000000000000000000000000000000000000000",
		"newPassword": "another-password",
	})
	return status, err
}
