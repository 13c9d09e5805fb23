// Package voice is the thin signalling relay for proximity voice chat. It
// forwards opaque ICE/SDP payloads between the current session and the ids
// the engine's nearest-persons view selects. No peer-connection logic lives
// here.
package voice

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"gridtown/internal/api"
)

// Signal kinds on the relay socket.
const (
	KindCandidate = "CANDIDATE"
	KindOffer     = "OFFER"
	KindAnswer    = "ANSWER"
)

type envelope struct {
	Kind    string          `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one session's connection to the signalling relay.
type Client struct {
	conn     *websocket.Conn
	identity string
	logger   *log.Logger
}

func Dial(url, identity string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, identity: identity, logger: logger}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// SendCandidate, SendOffer and SendAnswer relay one payload to a peer.
// Failures are logged, not escalated; the channel is best-effort.

func (c *Client) SendCandidate(to string, payload json.RawMessage) {
	c.send(envelope{Kind: KindCandidate, From: c.identity, To: to, Payload: payload})
}

func (c *Client) SendOffer(to string, payload json.RawMessage) {
	c.send(envelope{Kind: KindOffer, From: c.identity, To: to, Payload: payload})
}

func (c *Client) SendAnswer(to string, payload json.RawMessage) {
	c.send(envelope{Kind: KindAnswer, From: c.identity, To: to, Payload: payload})
}

// Deliver pushes the signalling traffic a pull cycle surfaced onward to the
// relay, so peers unreachable by socket still converge through the poll.
func (c *Client) Deliver(vm api.VoiceMessages) {
	for _, m := range vm.Candidates {
		c.SendCandidate(m.To, m.Payload)
	}
	for _, m := range vm.Offers {
		c.SendOffer(m.To, m.Payload)
	}
	for _, m := range vm.Answers {
		c.SendAnswer(m.To, m.Payload)
	}
}

func (c *Client) send(env envelope) {
	if err := c.conn.WriteJSON(env); err != nil {
		c.logger.Printf("voice send %s to %s: %v", env.Kind, env.To, err)
	}
}

// Run reads inbound envelopes until the socket closes, invoking onMessage
// for each one addressed to this session.
func (c *Client) Run(onMessage func(kind string, msg api.VoiceMessage)) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.To != "" && env.To != c.identity {
			continue
		}
		onMessage(env.Kind, api.VoiceMessage{From: env.From, To: env.To, Payload: env.Payload})
	}
}
