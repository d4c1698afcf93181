// Package parser converts raw source files into plain-text segments. PDFs
// (including scanned ones) go through a remote parsing service; Drive-exported
// HTML is reduced locally. A successful parse may legitimately yield zero
// segments when a document has no extractable text.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/campusbrain/backend/pkg/apperr"
	"github.com/campusbrain/backend/pkg/config"
)

type jobStatus string

const (
	statusPending jobStatus = "PENDING"
	statusSuccess jobStatus = "SUCCESS"
	statusError   jobStatus = "ERROR"
)

type Client struct {
	endpoint     string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewClient(cfg config.ParserConfig, logger *zap.Logger) *Client {
	pollInterval := time.Duration(cfg.PollIntervalSec) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollTimeout := time.Duration(cfg.PollTimeoutSec) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Minute
	}

	return &Client{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// ParsePDF uploads the file, waits for the parse job and returns one text per
// page. Scanned pages with no recognisable text come back empty and are
// filtered by the caller.
func (c *Client) ParsePDF(ctx context.Context, path string) ([]string, error) {
	jobID, err := c.upload(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := c.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	pages, err := c.fetchResult(ctx, jobID)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Document parsed",
		zap.String("file", filepath.Base(path)),
		zap.Int("pages", len(pages)),
	)

	return pages, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy file into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/v1/parsing/upload", &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperr.Unavailable("parser upload", errors.New("no job id in response"))
	}

	return resp.ID, nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(c.pollTimeout)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/api/v1/parsing/job/%s", c.endpoint, jobID), nil)
		if err != nil {
			return fmt.Errorf("build status request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var resp struct {
			Status jobStatus `json:"status"`
		}
		if err := c.do(req, &resp); err != nil {
			return err
		}

		switch resp.Status {
		case statusSuccess:
			return nil
		case statusError:
			return apperr.Unavailable("parser job", fmt.Errorf("job %s failed", jobID))
		}

		if time.Now().After(deadline) {
			return apperr.Unavailable("parser job", fmt.Errorf("job %s timed out after %s", jobID, c.pollTimeout))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, jobID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/parsing/job/%s/result/text", c.endpoint, jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp struct {
		Pages []struct {
			Text string `json:"text"`
		} `json:"pages"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	pages := make([]string, 0, len(resp.Pages))
	for _, page := range resp.Pages {
		pages = append(pages, page.Text)
	}

	return pages, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Unavailable("parser request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.Throttled("parser request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return apperr.Unavailable("parser request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("parser request: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Unavailable("parser response", err)
	}

	return nil
}
