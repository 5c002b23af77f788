package pypi

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// Client talks to a package index implementing the legacy upload API
type Client struct {
	url        string
	credential model.Credential
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for uploads
func WithHTTPClient(c *http.Client) Option {
	return func(x *Client) {
		x.httpClient = c
	}
}

// New creates a registry client for repositoryURL
func New(repositoryURL string, credential model.Credential, opts ...Option) *Client {
	c := &Client{
		url:        repositoryURL,
		credential: credential,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		userAgent:  "tagship/" + types.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inspect reads metadata and digests of a distribution file
func (c *Client) Inspect(ctx context.Context, path string) (*model.Artifact, error) {
	artifact, err := inspectFile(path)
	if err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Debug("Inspected artifact",
		"file", artifact.Filename,
		"name", artifact.Metadata.Name,
		"version", artifact.Metadata.Version,
		"size", artifact.Size,
	)
	return artifact, nil
}

// Upload posts one artifact with the file_upload action
func (c *Client) Upload(ctx context.Context, artifact *model.Artifact) error {
	if c.credential.Token.IsEmpty() {
		return goerr.New("registry token is not configured", goerr.T(types.ErrTagAuth))
	}

	body, contentType, err := c.multipartBody(artifact)
	if err != nil {
		return err
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return goerr.Wrap(err, "failed to create upload request", goerr.V("url", c.url))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.credential.Username, c.credential.Token.Unsafe())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send upload request",
			goerr.V("url", c.url),
			goerr.V("file", artifact.Filename),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyResponse(resp.StatusCode, resp.Status, string(respBody), artifact)
}

func classifyResponse(code int, status, body string, artifact *model.Artifact) error {
	opts := []goerr.Option{
		goerr.V("status", code),
		goerr.V("file", artifact.Filename),
		goerr.V("reason", status),
	}

	lowered := strings.ToLower(status + " " + body)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return goerr.New("registry rejected credential", append(opts, goerr.T(types.ErrTagAuth))...)
	case code == http.StatusConflict ||
		(code == http.StatusBadRequest && (strings.Contains(lowered, "already exist") || strings.Contains(lowered, "file name has already been used"))):
		return goerr.New("version already exists in registry", append(opts, goerr.T(types.ErrTagDuplicate))...)
	default:
		return goerr.New("registry rejected upload", opts...)
	}
}

// multipartBody streams the upload form so large files are not buffered
func (c *Client) multipartBody(artifact *model.Artifact) (io.ReadCloser, string, error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to open artifact", goerr.V("path", artifact.Path))
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()
		err := writeForm(mw, artifact, f)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType(), nil
}

func writeForm(mw *multipart.Writer, artifact *model.Artifact, content io.Reader) error {
	fields := [][2]string{
		{":action", "file_upload"},
		{"protocol_version", "1"},
		{"metadata_version", artifact.Metadata.MetadataVersion},
		{"name", artifact.Metadata.Name},
		{"version", artifact.Metadata.Version},
		{"filetype", string(artifact.Kind)},
		{"pyversion", artifact.PyVersion},
		{"md5_digest", artifact.MD5},
		{"sha256_digest", artifact.SHA256},
	}
	if artifact.Metadata.Summary != "" {
		fields = append(fields, [2]string{"summary", artifact.Metadata.Summary})
	}
	if artifact.Metadata.RequiresPython != "" {
		fields = append(fields, [2]string{"requires_python", artifact.Metadata.RequiresPython})
	}

	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return goerr.Wrap(err, "failed to write form field", goerr.V("field", field[0]))
		}
	}

	part, err := mw.CreateFormFile("content", artifact.Filename)
	if err != nil {
		return goerr.Wrap(err, "failed to create content part")
	}
	if _, err := io.Copy(part, content); err != nil {
		return goerr.Wrap(err, "failed to write artifact content", goerr.V("file", artifact.Filename))
	}
	return nil
}
