package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"conduit/internal/domain"
)

// Message is one mailbox entry. IDs increase monotonically per mailbox;
// Body is base64 on the wire.
type Message struct {
	ID    int    `json:"id"`
	Side  string `json:"side"`
	Phase string `json:"phase"`
	Body  []byte `json:"body"`
}

// Client talks to a rendezvous relay over HTTP.
type Client struct {
	Base string
	HTTP *http.Client
}

// NewClient returns a client for the relay at base.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Base: base, HTTP: httpClient}
}

// Welcome fetches the server greeting.
func (c *Client) Welcome(ctx context.Context) (domain.Welcome, error) {
	var out struct {
		Welcome domain.Welcome `json:"welcome"`
	}
	if err := c.getJSON(ctx, "/v1/welcome", &out); err != nil {
		return domain.Welcome{}, err
	}
	return out.Welcome, nil
}

// AllocateNameplate reserves a fresh nameplate for side.
func (c *Client) AllocateNameplate(ctx context.Context, side string) (string, error) {
	var out struct {
		Nameplate string `json:"nameplate"`
	}
	if err := c.post(ctx, "/v1/nameplates", sideBody{Side: side}, &out); err != nil {
		return "", err
	}
	return out.Nameplate, nil
}

// ClaimNameplate claims a nameplate and returns its mailbox id. Claiming
// is idempotent per side.
func (c *Client) ClaimNameplate(ctx context.Context, nameplate, side string) (string, error) {
	var out struct {
		Mailbox string `json:"mailbox"`
	}
	p := "/v1/nameplates/" + url.PathEscape(nameplate) + "/claim"
	if err := c.post(ctx, p, sideBody{Side: side}, &out); err != nil {
		return "", err
	}
	return out.Mailbox, nil
}

// ReleaseNameplate gives the nameplate back for reuse.
func (c *Client) ReleaseNameplate(ctx context.Context, nameplate, side string) error {
	p := "/v1/nameplates/" + url.PathEscape(nameplate) + "/release"
	return c.post(ctx, p, sideBody{Side: side}, nil)
}

// Add appends a message to the mailbox. Re-posting the same (side, phase)
// is a no-op, which makes handshake resumption safe.
func (c *Client) Add(ctx context.Context, mailbox, side, phase string, body []byte) error {
	p := "/v1/mailboxes/" + url.PathEscape(mailbox) + "/messages"
	return c.post(ctx, p, Message{Side: side, Phase: phase, Body: body}, nil)
}

// Poll returns messages with id greater than since, long-polling briefly
// when the mailbox has nothing new.
func (c *Client) Poll(ctx context.Context, mailbox string, since int) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	p := "/v1/mailboxes/" + url.PathEscape(mailbox) + "/messages?since=" + strconv.Itoa(since)
	if err := c.getJSON(ctx, p, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// CloseMailbox records this side's final mood and releases the mailbox
// once both sides have closed.
func (c *Client) CloseMailbox(ctx context.Context, mailbox, side string, mood domain.Mood) error {
	p := "/v1/mailboxes/" + url.PathEscape(mailbox) + "/close"
	return c.post(ctx, p, struct {
		Side string      `json:"side"`
		Mood domain.Mood `json:"mood"`
	}{Side: side, Mood: mood}, nil)
}

type sideBody struct {
	Side string `json:"side"`
}

// ---------- helpers ----------

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
