package e2etest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yusco/siteaudit/internal/errors"
)

// Client walks the audit wizard like a browser: it keeps the session cookie and sends the CSRF token of the form it
// submits.
type Client struct {
	client *http.Client
	url    string
}

// FormFile is a file attached to a multipart form submission.
type FormFile struct {
	Field    string
	FileName string
	Content  []byte
}

func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar},
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request with context")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, errors.Wrap(err, "client get")
	}
	return parseResponse(resp)
}

// Download fetches a file and returns its body and headers.
func (c *Client) Download(ctx context.Context, urlPath string) ([]byte, http.Header, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "client get")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, nil, errors.New("unexpected status code",
			slog.Int("status", resp.StatusCode), slog.String("path", urlPath))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read body")
	}
	return body, resp.Header, nil
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req, nil
}

func (c *Client) extractCSRFToken(doc *goquery.Document, formActionURLPath string) (string, error) {
	formSelector := fmt.Sprintf("form[action='%s']", formActionURLPath)
	form := doc.Find(formSelector)
	if form.Length() == 0 {
		return "", errors.New("form not found", slog.String("action", formActionURLPath))
	}
	csrfToken, ok := form.First().Find("input[name=csrf_token]").Attr("value")
	if !ok {
		return "", errors.New("csrf_token not found in form", slog.String("action", formActionURLPath))
	}
	return csrfToken, nil
}

// SubmitForm submits the form of doc with action formActionURLPath and returns the document the server redirects to.
func (c *Client) SubmitForm(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	values neturl.Values,
) (*goquery.Document, error) {
	req, err := c.formRequest(ctx, doc, formActionURLPath, values)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// SubmitFragment submits the form with action formActionURLPath to its hx-post endpoint like htmx does and returns
// the HTML fragment of the response.
func (c *Client) SubmitFragment(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	values neturl.Values,
) (*goquery.Document, error) {
	form := doc.Find(fmt.Sprintf("form[action='%s']", formActionURLPath))
	hxPost, ok := form.First().Attr("hx-post")
	if !ok {
		return nil, errors.New("form has no hx-post attribute", slog.String("action", formActionURLPath))
	}
	req, err := c.formRequest(ctx, doc, formActionURLPath, values)
	if err != nil {
		return nil, err
	}
	if req.URL, err = neturl.Parse(c.url + hxPost); err != nil {
		return nil, errors.Wrap(err, "parse hx-post", slog.String("hx-post", hxPost))
	}
	req.Header.Set("HX-Request", "true")
	return c.do(req)
}

// SubmitMultipartForm submits the form with files attached, as the question forms holding photos do.
func (c *Client) SubmitMultipartForm(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	values neturl.Values,
	files []FormFile,
) (*goquery.Document, error) {
	csrfToken, err := c.extractCSRFToken(doc, formActionURLPath)
	if err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err = mw.WriteField("csrf_token", csrfToken); err != nil {
		return nil, errors.Wrap(err, "write csrf field")
	}
	for key, vs := range values {
		for _, v := range vs {
			if err = mw.WriteField(key, v); err != nil {
				return nil, errors.Wrap(err, "write field", slog.String("field", key))
			}
		}
	}
	for _, f := range files {
		var w io.Writer
		if w, err = mw.CreateFormFile(f.Field, f.FileName); err != nil {
			return nil, errors.Wrap(err, "create form file", slog.String("field", f.Field))
		}
		if _, err = w.Write(f.Content); err != nil {
			return nil, errors.Wrap(err, "write form file", slog.String("field", f.Field))
		}
	}
	if err = mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := c.newRequestWithContext(ctx, http.MethodPost, formActionURLPath, &body)
	if err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *Client) formRequest(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	values neturl.Values,
) (*http.Request, error) {
	csrfToken, err := c.extractCSRFToken(doc, formActionURLPath)
	if err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}
	formData := neturl.Values{}
	for key, vs := range values {
		formData[key] = append([]string(nil), vs...)
	}
	formData.Set("csrf_token", csrfToken)

	req, err := c.newRequestWithContext(ctx, http.MethodPost, formActionURLPath, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) do(req *http.Request) (*goquery.Document, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (*goquery.Document, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code",
			slog.Int("status", resp.StatusCode), slog.String("url", resp.Request.URL.String()))
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return doc, nil
}
