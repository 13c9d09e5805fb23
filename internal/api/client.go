package api

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gridtown/internal/inventory"
)

//go:embed pull.schema.json
var pullSchemaJSON string

// Client talks to the authority. All calls take a context; the client itself
// imposes no timeout (the poll cadence tolerates a slow cycle by delaying the
// next one).
type Client struct {
	base     string
	identity string
	http     *http.Client
	logger   *log.Logger
	schema   *jsonschema.Schema
}

func New(base, identity string, logger *log.Logger) (*Client, error) {
	schema, err := jsonschema.CompileString("pull.schema.json", pullSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("pull schema: %w", err)
	}
	return &Client{
		base:     base,
		identity: identity,
		http:     &http.Client{},
		logger:   logger,
		schema:   schema,
	}, nil
}

// Push sends the locally modified entities. Pushes are snapshots, not
// diffs-of-diffs, so a failed push is naturally retried by the next cycle.
func (c *Client) Push(ctx context.Context, req PushRequest) error {
	return c.post(ctx, "/push", req, nil)
}

// Pull fetches the authority's snapshot for this identity. The body is
// validated against the embedded schema before decoding; a response that
// fails validation is treated like any transient network failure.
func (c *Client) Pull(ctx context.Context) (*PullResponse, error) {
	u := c.base + "/pull?identity=" + url.QueryEscape(c.identity)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeRemoteError(resp.StatusCode, body)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("pull response shape: %w", err)
	}
	var pull PullResponse
	if err := json.Unmarshal(body, &pull); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	return &pull, nil
}

// SendTransaction mirrors an already-applied local transaction to the
// authority. Fire-and-forget: the effect comes back on the next pull.
func (c *Client) SendTransaction(ctx context.Context, req inventory.Request) {
	c.fire(ctx, "/action/"+req.Op, req)
}

// Lot trading.

func (c *Client) BuyLot(ctx context.Context, lotID string, price int) {
	c.fire(ctx, "/action/buyLot", map[string]any{"lotId": lotID, "price": price})
}

func (c *Client) SellLot(ctx context.Context, lotID string, price int) {
	c.fire(ctx, "/action/sellLot", map[string]any{"lotId": lotID, "price": price})
}

func (c *Client) AcceptOffer(ctx context.Context, lotID string) {
	c.fire(ctx, "/action/acceptOffer", map[string]any{"lotId": lotID})
}

// Vend buys one item from a vending machine object.
func (c *Client) Vend(ctx context.Context, machineID, item string) {
	c.fire(ctx, "/action/vendItem", map[string]any{"machineId": machineID, "item": item})
}

// NPC management.

func (c *Client) SetNpcJob(ctx context.Context, npcID, job string) {
	c.fire(ctx, "/action/setNpcJob", map[string]any{"npcId": npcID, "job": job})
}

func (c *Client) RefreshNpcs(ctx context.Context) {
	c.fire(ctx, "/action/refreshNpcs", map[string]any{})
}

// Heartbeat keeps the session's cell locks alive.
func (c *Client) Heartbeat(ctx context.Context) {
	c.fire(ctx, "/heartbeat", map[string]any{})
}

// DeletePerson is the best-effort removal of the current person at session
// end.
func (c *Client) DeletePerson(ctx context.Context, personID string) {
	c.fire(ctx, "/action/deletePerson", map[string]any{"personId": personID})
}

// fire posts and only logs failures; action endpoints never escalate into
// the merge logic.
func (c *Client) fire(ctx context.Context, path string, payload any) {
	if err := c.post(ctx, path, payload, nil); err != nil {
		c.logger.Printf("%s: %v", path, err)
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := c.base + path + "?identity=" + url.QueryEscape(c.identity)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return decodeRemoteError(resp.StatusCode, body)
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

func decodeRemoteError(status int, body []byte) error {
	var re RemoteError
	if err := json.Unmarshal(body, &re); err == nil && re.Code != "" {
		if !IsKnownCode(re.Code) {
			return fmt.Errorf("http %d: unknown code %q: %s", status, re.Code, re.Message)
		}
		return &re
	}
	return fmt.Errorf("http %d", status)
}
