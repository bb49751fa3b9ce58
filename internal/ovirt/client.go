package ovirt

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	ovirtsdk4 "github.com/ovirt/go-ovirt"

	"github.com/jbweber/foundry-ovirt/internal/config"
)

// Client wraps a go-ovirt connection and implements vm.Service.
type Client struct {
	conn *ovirtsdk4.Connection
	log  logr.Logger
}

// Connect establishes a connection to the oVirt engine described by cfg and
// verifies it. It returns a Client that must be closed via Close() when done.
//
// If cfg.Timeout is zero, config.DefaultTimeout is used.
func Connect(cfg *config.ProviderConfig, log logr.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("provider configuration is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}

	builder := ovirtsdk4.NewConnectionBuilder().
		URL(cfg.URL).
		Username(cfg.Username).
		Password(cfg.Password).
		Insecure(cfg.Insecure).
		Compress(true).
		Timeout(timeout)
	if cfg.CAFile != "" {
		builder = builder.CAFile(cfg.CAFile)
	}

	conn, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build oVirt connection to %s: %w", cfg.URL, err)
	}

	c := &Client{conn: conn, log: log.WithName("ovirt")}
	if err := c.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to oVirt at %s: %w", cfg.URL, err)
	}

	c.log.V(1).Info("Connected", "url", cfg.URL, "username", cfg.Username)
	return c, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
func ConnectWithContext(ctx context.Context, cfg *config.ProviderConfig, log logr.Logger) (*Client, error) {
	// Create a channel for the connection result
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	// Attempt connection in a goroutine
	go func() {
		c, err := Connect(cfg, log)
		resultCh <- result{client: c, err: err}
	}()

	// Wait for either context cancellation or connection completion
	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the oVirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close oVirt connection: %w", err)
	}
	return nil
}

// Ping verifies the connection is still alive and the credentials work.
func (c *Client) Ping() error {
	if c == nil || c.conn == nil {
		return errors.New("client not connected")
	}

	if err := c.conn.Test(); err != nil {
		return fmt.Errorf("oVirt connection is dead: %w", err)
	}
	return nil
}
