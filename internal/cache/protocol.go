package cache

// JSON protocol spoken between Client and Serve over a Unix domain socket.
// Each connection carries a stream of request -> response pairs.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpPing   = "ping"
)

type Request struct {
	Op         string `json:"op"`
	Key        string `json:"key,omitempty"`
	Value      []byte `json:"value,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Value []byte `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}
