package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/netx"
)

// Options configures HTTPClient.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// ChunkRetries is how many extra attempts a chunk or handshake call gets
	// after a network error or 5xx. Client errors are never retried.
	ChunkRetries uint64
	RetryBackoff time.Duration
}

// HTTPClient implements Client against the mail store's HTTP endpoints.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	retries uint64
	backoff time.Duration
	log     logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// New returns an HTTPClient for opts.BaseURL.
func New(opts Options, log logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server address %q: scheme must be http or https", opts.BaseURL)
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	if log == nil {
		log = logging.Discard()
	}
	return &HTTPClient{
		base:    u,
		http:    &http.Client{Timeout: opts.Timeout},
		retries: opts.ChunkRetries,
		backoff: backoff,
		log:     log,
	}, nil
}

func (c *HTTPClient) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// SendChunk posts one chunk as a raw octet-stream body.
func (c *HTTPClient) SendChunk(ctx context.Context, req ChunkRequest) error {
	q := url.Values{}
	q.Set(common.ParamFileID, req.UploadID)
	q.Set(common.ParamFileName, req.FileName)
	q.Set(common.ParamChunkIndex, strconv.Itoa(req.Index))
	q.Set(common.ParamTotalChunks, strconv.Itoa(req.Total))
	target := c.endpoint(common.RouteUploadChunk, q)

	return c.withRetry(ctx, "upload chunk", func(ctx context.Context) error {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(req.Data))
		if err != nil {
			return err
		}
		r.Header.Set("Content-Type", "application/octet-stream")
		return c.do(r, "upload chunk", nil)
	})
}

// CompleteUpload posts the completion handshake and returns the storage handle.
func (c *HTTPClient) CompleteUpload(ctx context.Context, req CompleteRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	target := c.endpoint(common.RouteUploadComplete, nil)

	var out completeResponse
	err = c.withRetry(ctx, "complete upload", func(ctx context.Context) error {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		r.Header.Set("Content-Type", "application/json")
		return c.do(r, "complete upload", &out)
	})
	if err != nil {
		return "", err
	}
	if out.FilePath == "" {
		return "", errors.New("complete upload: empty file path in response")
	}
	return out.FilePath, nil
}

// Send posts the message as multipart form data. Recipients and attachment
// paths are repeated fields, one value per entry.
// It is not retried: a resend could deliver the message twice.
func (c *HTTPClient) Send(ctx context.Context, msg Outbound) (*models.Email, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ k, v string }{
		{common.FieldSender, msg.Sender},
		{common.FieldSubject, msg.Subject},
		{common.FieldBody, msg.Body},
	}
	for _, r := range msg.Recipients {
		fields = append(fields, struct{ k, v string }{common.FieldRecipients, r})
	}
	for _, p := range msg.AttachmentPaths {
		fields = append(fields, struct{ k, v string }{common.FieldAttachmentPaths, p})
	}
	for _, f := range fields {
		if err := mw.WriteField(f.k, f.v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(common.RouteSend, nil), &buf)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.Email
	if err := c.do(r, "send", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEmails returns sent messages, newest first.
func (c *HTTPClient) ListEmails(ctx context.Context) ([]models.Email, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(common.RouteEmails, nil), nil)
	if err != nil {
		return nil, err
	}
	var out []models.Email
	if err := c.do(r, "list emails", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEmail returns one sent message. A 404 maps to common.ErrorNotFound.
func (c *HTTPClient) GetEmail(ctx context.Context, id int64) (*models.Email, error) {
	path := common.RouteEmails + "/" + strconv.FormatInt(id, 10)
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, nil), nil)
	if err != nil {
		return nil, err
	}
	var out models.Email
	if err := c.do(r, "get email", &out); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("email %d: %w", id, common.ErrorNotFound)
		}
		return nil, err
	}
	return &out, nil
}

// do performs r and decodes a 2xx body into out when out is non-nil.
func (c *HTTPClient) do(r *http.Request, op string, out any) error {
	resp, err := c.http.Do(r)
	if err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Message: netx.ReadError(resp)}
	}
	if out == nil {
		return nil
	}
	if err := netx.DecodeJSON(resp, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) withRetry(ctx context.Context, op string, fn retry.RetryFunc) error {
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !temporary(err) {
			return err
		}
		c.log.Warn(ctx, "request failed, retrying", "op", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func temporary(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Temporary()
}
