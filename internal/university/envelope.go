package university

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the blob stored under the cache key.
type envelope struct {
	Version   string       `json:"version"`
	Timestamp int64        `json:"timestamp"`
	Data      []University `json:"data"`
}

func encodeEnvelope(version string, at time.Time, data []University) ([]byte, error) {
	return json.Marshal(envelope{Version: version, Timestamp: at.UnixMilli(), Data: data})
}

// decodeEnvelope requires version, timestamp and data to be present.
func decodeEnvelope(b []byte) (envelope, error) {
	var raw struct {
		Version   *string         `json:"version"`
		Timestamp *int64          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if !isJSONKind(b, '{') {
		return envelope{}, fmt.Errorf("%w: cache entry is not an object", ErrInvalidDataset)
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if raw.Version == nil || raw.Timestamp == nil || raw.Data == nil {
		return envelope{}, fmt.Errorf("%w: cache entry missing fields", ErrInvalidDataset)
	}
	data, err := DecodeDataset(raw.Data)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Version: *raw.Version, Timestamp: *raw.Timestamp, Data: data}, nil
}

// fresh reports whether the entry is still inside ttl at now.
func (e envelope) fresh(now time.Time, ttl time.Duration) bool {
	age := now.UnixMilli() - e.Timestamp
	return age <= ttl.Milliseconds()
}
