package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"
)

// Serve accepts connections on l and answers KV requests against kv until
// the listener is closed.
func Serve(l net.Listener, kv KV) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go handleConn(conn, kv)
	}
}

func handleConn(conn net.Conn, kv KV) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(dispatch(kv, req)); err != nil {
			return
		}
	}
}

func dispatch(kv KV, req Request) Response {
	switch req.Op {
	case OpPing:
		return Response{OK: true}
	case OpGet:
		v, err := kv.Get(req.Key)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Value: v}
	case OpPut:
		ttl := time.Duration(req.TTLSeconds) * time.Second
		if err := kv.Put(req.Key, req.Value, ttl); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	case OpDelete:
		if err := kv.Delete(req.Key); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}

func failure(err error) Response { return Response{OK: false, Error: err.Error()} }
