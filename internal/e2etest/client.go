package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/descope/virtualwebauthn"
)

type Client struct {
	client        *http.Client
	url           string
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
}

// NewClient creates a Webauthn-aware HTTP client.
//
// rpID and rpOrigin should correspond to the Webauthn setup on the server.
func NewClient(url, rpID, rpOrigin string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, fmt.Errorf("create unsafe cookie jar: %w", err)
	}
	return &Client{
		client:        &http.Client{Jar: jar}, //nolint:exhaustruct // Defaults.
		url:           url,
		rp:            virtualwebauthn.RelyingParty{Name: "LockedIn", ID: rpID, Origin: rpOrigin},
		authenticator: virtualwebauthn.NewAuthenticator(),
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	const (
		timeout  = time.Second
		interval = 100 * time.Millisecond
	)
	deadline := time.Now().Add(timeout)
	for {
		resp, err := c.Get(ctx, urlPath)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for endpoint to be ready")
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, urlPath, "", nil)
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, fmt.Errorf("client get: %w", err)
	}
	return parseDocument(resp)
}

// DoJSON sends body encoded as JSON and returns the raw response. A nil body sends no content.
func (c *Client) DoJSON(ctx context.Context, method, urlPath string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, urlPath, "application/json", reader)
}

func (c *Client) do(
	ctx context.Context,
	method, urlPath, contentType string,
	body io.Reader,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// postJSONExpectOK posts body and returns the response body of a 200 response.
func (c *Client) postJSONExpectOK(ctx context.Context, urlPath string, body io.Reader) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, urlPath, "application/json", body)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, out)
	}
	return out, nil
}

// Register registers a new WebAuthn credential for displayName and returns the dashboard document.
func (c *Client) Register(ctx context.Context, displayName string) (*goquery.Document, error) {
	startPath := "/api/registration/start?" + neturl.Values{"display_name": {displayName}}.Encode()
	body, err := c.postJSONExpectOK(ctx, startPath, nil)
	if err != nil {
		return nil, fmt.Errorf("start registration: %w", err)
	}
	attOpts, err := virtualwebauthn.ParseAttestationOptions(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse attestation options: %w", err)
	}

	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, credential, *attOpts)
	if _, err = c.postJSONExpectOK(ctx, "/api/registration/finish", strings.NewReader(attestation)); err != nil {
		return nil, fmt.Errorf("finish registration: %w", err)
	}

	// At this point, our credential is ready for logging in.
	c.authenticator.AddCredential(credential)
	// This option is needed for making Passkey login work.
	c.authenticator.Options.UserHandle = []byte(attOpts.UserID)

	return c.GetDoc(ctx, "/")
}

// Login logs in with the registered WebAuthn credential and returns the dashboard document.
func (c *Client) Login(ctx context.Context) (*goquery.Document, error) {
	if len(c.authenticator.Credentials) == 0 {
		return nil, errors.New("no registered credential")
	}
	body, err := c.postJSONExpectOK(ctx, "/api/login/start", nil)
	if err != nil {
		return nil, fmt.Errorf("start login: %w", err)
	}
	asOpts, err := virtualwebauthn.ParseAssertionOptions(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse assertion options: %w", err)
	}

	assertion := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, c.authenticator.Credentials[0], *asOpts)
	if _, err = c.postJSONExpectOK(ctx, "/api/login/finish", strings.NewReader(assertion)); err != nil {
		return nil, fmt.Errorf("finish login: %w", err)
	}
	return c.GetDoc(ctx, "/")
}

// Logout submits the logout form on the dashboard.
func (c *Client) Logout(ctx context.Context) (*goquery.Document, error) {
	doc, err := c.GetDoc(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return c.SubmitForm(ctx, doc, "/api/logout", nil)
}

// SubmitForm submits a form in the doc identified with action formActionURLPath and returns the response document
// after redirects.
//
// formFields is a map of label text to value. The function will find the input by label and set its value.
func (c *Client) SubmitForm(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	formFields map[string]string,
) (*goquery.Document, error) {
	form, err := FindForm(doc, formActionURLPath)
	if err != nil {
		return nil, fmt.Errorf("find form: %w", err)
	}

	formData := neturl.Values{}
	// Hidden inputs carry values the user does not type.
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		if name, ok := input.Attr("name"); ok {
			formData.Set(name, input.AttrOr("value", ""))
		}
	})
	for labelText, value := range formFields {
		var input *goquery.Selection
		if input, err = FindInputForLabel(form, labelText); err != nil {
			return nil, fmt.Errorf("find input for label: %w", err)
		}
		name, exists := input.Attr("name")
		if !exists {
			return nil, fmt.Errorf("input has no name attribute (label: %s, form_action: %s)",
				labelText, formActionURLPath)
		}
		formData.Set(name, value)
	}

	resp, err := c.do(ctx, http.MethodPost, formActionURLPath, "application/x-www-form-urlencoded",
		strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, err
	}
	return parseDocument(resp)
}

func parseDocument(resp *http.Response) (*goquery.Document, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}
