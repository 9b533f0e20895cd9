package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// Event is the dispatcher's output: exactly one of the typed fields is set,
// matching which topic the underlying log matched.
type Event struct {
	V4Initialize *V4Initialize
	V4Swap       *V4Swap
	V3PoolCreated *V3PoolCreated
	V3Swap       *V3Swap
}

// Client owns one persistent bidirectional subscription stream to the
// chain endpoint, multiplexing all four topic subscriptions over it, and a
// separate HTTP-backed ethclient.Client for one-shot RPCs.
type Client struct {
	wssEndpoint string
	http        *ethclient.Client

	dialer websocket.Dialer

	poolManager common.Address
	factory     common.Address

	connMu sync.Mutex
	conn   *websocket.Conn
	subIDs map[string]string // server-assigned subscription id -> topic

	events chan Event
	done   chan struct{}
}

// New dials the HTTP endpoint for one-shot RPCs eagerly, but defers the
// websocket connection to Run so reconnects share the same code path as
// the initial connect. poolManager and factory scope the V4
// Initialize/Swap and V3 PoolCreated subscriptions to their emitting
// contracts; V3 Swap is intentionally left unscoped, since V3 pools are
// deployed per-pair and membership is checked in-process against the V3
// listener's pool index instead.
func New(wssEndpoint, httpEndpoint string, poolManager, factory common.Address) (*Client, error) {
	httpClient, err := ethclient.Dial(httpEndpoint)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial http endpoint: %w", err)
	}
	return &Client{
		wssEndpoint: wssEndpoint,
		http:        httpClient,
		dialer:      websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		poolManager: poolManager,
		factory:     factory,
		subIDs:      make(map[string]string),
		events:      make(chan Event, 256),
		done:        make(chan struct{}),
	}, nil
}

// Events returns the channel typed, decoded events are published to. One
// channel carries all four event kinds; listeners switch on which field of
// Event is non-nil.
func (c *Client) Events() <-chan Event {
	return c.events
}

// HTTP exposes the one-shot RPC client for GetCode / GetBlock /
// GetTransaction callers (the safety scanner, deployer resolution).
func (c *Client) HTTP() *ethclient.Client {
	return c.http
}

// Run connects, subscribes to all four topics, and reads until ctx is
// canceled, reconnecting with exponential backoff (1s initial, 30s cap) on
// any stream error. Events observed during a reconnect gap are lost by
// design — no replay is attempted.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	defer close(c.events)

	boff := &backoff.Backoff{Min: 1 * time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := c.connect(); err != nil {
			log.Printf("[chainclient] connect failed: %v", err)
			c.sleep(ctx, boff.Duration())
			continue
		}
		if err := c.subscribeAll(); err != nil {
			log.Printf("[chainclient] subscribe failed: %v", err)
			c.closeConn()
			c.sleep(ctx, boff.Duration())
			continue
		}
		boff.Reset()

		err := c.readLoop(ctx)
		if err == nil {
			return nil // ctx canceled cleanly
		}
		log.Printf("[chainclient] stream error, reconnecting: %v", err)
		c.closeConn()
		c.sleep(ctx, boff.Duration())
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (c *Client) connect() error {
	conn, _, err := c.dialer.Dial(c.wssEndpoint, nil)
	if err != nil {
		return err
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	log.Printf("[chainclient] connected to %s", c.wssEndpoint)
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// subscriptionSpec pairs a topic with the contract address its logs must
// come from. A nil address leaves the subscription topic-only: V3 Swap is
// emitted by one contract per pool, so it is filtered by topic0 alone and
// checked against the V3 listener's pool index after delivery instead.
type subscriptionSpec struct {
	topic   string
	address *common.Address
}

func (c *Client) subscriptionSpecs() []subscriptionSpec {
	return []subscriptionSpec{
		{topic: TopicV4Initialize, address: &c.poolManager},
		{topic: TopicV4Swap, address: &c.poolManager},
		{topic: TopicV3PoolCreated, address: &c.factory},
		{topic: TopicV3Swap, address: nil},
	}
}

func (c *Client) subscribeAll() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	for i, spec := range c.subscriptionSpecs() {
		topic := spec.topic
		filter := map[string]interface{}{"topics": []string{topic}}
		if spec.address != nil {
			filter["address"] = spec.address.Hex()
		}
		msg := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscribe",
			"params": []interface{}{
				"logs",
				filter,
			},
			"id": i + 1,
		}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("subscribe response %s: %w", topic, err)
		}
		c.conn.SetReadDeadline(time.Time{})

		var resp struct {
			Result string `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("subscribe parse %s: %w", topic, err)
		}
		if resp.Error != nil {
			return fmt.Errorf("subscribe rejected %s: %s", topic, resp.Error.Message)
		}
		c.subIDs[resp.Result] = topic
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(msg)
	}
}

type subscriptionNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

type wireLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

func (c *Client) handleMessage(data []byte) {
	var notif subscriptionNotification
	if err := json.Unmarshal(data, &notif); err != nil {
		return // not a notification we care about (e.g. an RPC ack)
	}
	if notif.Method != "eth_subscription" {
		return
	}

	topic, ok := c.subIDs[notif.Params.Subscription]
	if !ok {
		return
	}

	var wl wireLog
	if err := json.Unmarshal(notif.Params.Result, &wl); err != nil {
		log.Printf("[chainclient] malformed log notification: %v", err)
		return
	}

	raw, err := toRawLog(wl)
	if err != nil {
		log.Printf("[chainclient] malformed log fields: %v", err)
		return
	}

	ev, err := decodeByTopic(topic, raw)
	if err != nil {
		log.Printf("[chainclient] decode error, skipping event: %v", err)
		return
	}

	select {
	case c.events <- ev:
	default:
		log.Printf("[chainclient] event channel full, dropping event")
	}
}

func toRawLog(wl wireLog) (RawLog, error) {
	topics := make([]common.Hash, len(wl.Topics))
	for i, t := range wl.Topics {
		topics[i] = common.HexToHash(t)
	}
	data, err := hexDecode(wl.Data)
	if err != nil {
		return RawLog{}, fmt.Errorf("data field: %w", err)
	}
	blockNum, err := hexToUint64(wl.BlockNumber)
	if err != nil {
		return RawLog{}, fmt.Errorf("blockNumber field: %w", err)
	}
	logIndex, err := hexToUint64(wl.LogIndex)
	if err != nil {
		return RawLog{}, fmt.Errorf("logIndex field: %w", err)
	}
	return RawLog{
		Address:     common.HexToAddress(wl.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNum,
		TxHash:      common.HexToHash(wl.TransactionHash),
		LogIndex:    logIndex,
		Removed:     wl.Removed,
	}, nil
}

func decodeByTopic(topic string, raw RawLog) (Event, error) {
	switch topic {
	case TopicV4Initialize:
		ev, err := DecodeV4Initialize(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{V4Initialize: &ev}, nil
	case TopicV4Swap:
		ev, err := DecodeV4Swap(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{V4Swap: &ev}, nil
	case TopicV3PoolCreated:
		ev, err := DecodeV3PoolCreated(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{V3PoolCreated: &ev}, nil
	case TopicV3Swap:
		ev, err := DecodeV3Swap(raw)
		if err != nil {
			return Event{}, err
		}
		return Event{V3Swap: &ev}, nil
	default:
		return Event{}, fmt.Errorf("unknown topic %s", topic)
	}
}
