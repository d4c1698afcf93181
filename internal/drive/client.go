// Package drive is the document-source connector. It lists the cohort folders
// and downloads individual files with a service-account credential, keeping
// well under Google's per-user request quota.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/campusbrain/backend/pkg/apperr"
)

// MIME types this pipeline knows how to handle.
const (
	MimeTypePDF       = "application/pdf"
	MimeTypeGoogleDoc = "application/vnd.google-apps.document"
	MimeTypeFolder    = "application/vnd.google-apps.folder"

	exportMimeHTML = "text/html"
)

// SourceFile identifies one ingestible artifact inside a cohort folder.
// Immutable during an ingestion run.
type SourceFile struct {
	ID       string
	Name     string
	MimeType string
	WebLink  string
}

type Client struct {
	svc     *drive.Service
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a Drive client from a service-account credentials file.
// The folders must be shared with the service account's email address.
func NewClient(ctx context.Context, credentialsPath string, logger *zap.Logger) (*Client, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", credentialsPath, err)
	}

	conf, err := google.JWTConfigFromJSON(data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		return nil, apperr.Unavailable("drive connect", err)
	}

	logger.Info("Drive client initialized", zap.String("service_account", conf.Email))

	// Google allows 10 requests/sec/user on Drive; stay under it.
	return &Client{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(8), 10),
		logger:  logger,
	}, nil
}

// ListFolder returns the non-trashed files directly inside folderID. An empty
// result usually means the folder was not shared with the service account.
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]SourceFile, error) {
	var files []SourceFile
	pageToken := ""

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, webViewLink)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			return nil, wrapErr("drive list", err)
		}

		for _, f := range result.Files {
			if f.MimeType == MimeTypeFolder {
				continue
			}
			files = append(files, SourceFile{
				ID:       f.Id,
				Name:     f.Name,
				MimeType: f.MimeType,
				WebLink:  f.WebViewLink,
			})
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	c.logger.Debug("Folder listed",
		zap.String("folder_id", folderID),
		zap.Int("files", len(files)),
	)

	return files, nil
}

// Download streams the file's media content to dest.
func (c *Client) Download(ctx context.Context, fileID, dest string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return wrapErr("drive download", err)
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	return nil
}

// ExportHTML exports a native Google Doc as HTML for local text extraction.
func (c *Client) ExportHTML(ctx context.Context, fileID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.svc.Files.Export(fileID, exportMimeHTML).Context(ctx).Download()
	if err != nil {
		return "", wrapErr("drive export", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Unavailable("drive export read", err)
	}

	return string(data), nil
}

// wrapErr maps googleapi errors onto the shared taxonomy. Drive reports
// per-user rate limiting as 403 with a rate-limit reason as well as 429.
func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperr.Unavailable(op, err)
	}

	switch gerr.Code {
	case http.StatusTooManyRequests:
		return apperr.Throttled(op, err)
	case http.StatusForbidden:
		for _, e := range gerr.Errors {
			if e.Reason == "userRateLimitExceeded" || e.Reason == "rateLimitExceeded" {
				return apperr.Throttled(op, err)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	default:
		if gerr.Code >= 500 {
			return apperr.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}
