// Package remote fetches synthesized templates over HTTP.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"github.com/BDNK1/schedstack/internal/template"
)

// Config holds the client settings with declarative tags
type Config struct {
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries  int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
	RetryWaitMS int           `yaml:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
	Debug       bool          `yaml:"debug" default:"false"`
}

// Client fetches templates from a preview server or any URL serving one.
type Client struct {
	client *resty.Client
}

// New applies defaults to cfg, validates it and builds the client.
func New(cfg Config) (*Client, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply client defaults: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	return &Client{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(cfg.MaxRetries).
			SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
			SetDebug(cfg.Debug),
	}, nil
}

// FetchTemplate downloads and parses the template at url. JSON and YAML
// bodies are both accepted.
func (c *Client) FetchTemplate(ctx context.Context, url string) (*template.Template, error) {
	errorResponse := map[string]any{}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json, application/yaml").
		SetError(&errorResponse).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("template request failed: %w", err)
	}
	if resp.IsError() {
		if msg, ok := errorResponse["message"].(string); ok {
			return nil, fmt.Errorf("template request to %s returned %s: %s", url, resp.Status(), msg)
		}
		return nil, fmt.Errorf("template request to %s returned %s", url, resp.Status())
	}

	tmpl, err := template.Parse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to parse template from %s: %w", url, err)
	}
	return tmpl, nil
}
