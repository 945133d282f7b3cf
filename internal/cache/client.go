package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client implements KV by talking to a cache daemon over a Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 500 * time.Millisecond}
}

// Dial probes the daemon socket and returns a client when it answers a ping.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	c := &Client{socketPath: socketPath, timeout: timeout}
	if err := c.Ping(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) roundTrip(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, fmt.Errorf("cache: send %s: %w", req.Op, err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("cache: read %s: %w", req.Op, err)
	}
	if !resp.OK {
		return resp, remoteError(resp.Error)
	}
	return resp, nil
}

func (c *Client) Ping() error {
	_, err := c.roundTrip(Request{Op: OpPing})
	return err
}

func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *Client) Put(key string, value []byte, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	if ttl > 0 && secs == 0 {
		secs = 1
	}
	_, err := c.roundTrip(Request{Op: OpPut, Key: key, Value: value, TTLSeconds: secs})
	return err
}

func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(Request{Op: OpDelete, Key: key})
	return err
}

// remoteError maps daemon error strings back onto the package sentinels.
func remoteError(msg string) error {
	for _, sentinel := range []error{ErrNotFound, ErrExpired, ErrCorrupt} {
		if msg == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(msg)
}
