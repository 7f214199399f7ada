package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
)

// Redis send modes.
const (
	RedisList   = "list"
	RedisPubSub = "pubsub"
)

// DefaultRedisKey is the list key or channel payloads are sent to.
const DefaultRedisKey = "tagrelay:tags"

// RedisDialer sends each payload with RPUSH onto a list or PUBLISH to a
// channel.
type RedisDialer struct {
	Options *redis.Options
	Key     string
	Mode    string
}

// NewRedisDialer creates a RedisDialer from
// redis://[user:pass@]host:port/db?key=k&mode=list|pubsub.
// Other query parameters are passed to the client.
func NewRedisDialer(rawURL string) (*RedisDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	d := &RedisDialer{Key: DefaultRedisKey, Mode: RedisList}
	query := u.Query()
	if key := query.Get("key"); key != "" {
		d.Key = key
	}
	if mode := query.Get("mode"); mode != "" {
		d.Mode = mode
	}
	switch d.Mode {
	case RedisList, RedisPubSub:
	default:
		return nil, fmt.Errorf("invalid redis mode %q", d.Mode)
	}
	query.Del("key")
	query.Del("mode")
	u.RawQuery = query.Encode()
	if d.Options, err = redis.ParseURL(u.String()); err != nil {
		return nil, err
	}
	return d, nil
}

// Dial implements Dialer.
func (d *RedisDialer) Dial(ctx context.Context) (Conn, error) {
	client := redis.NewClient(d.Options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisConn{client: client, key: d.Key, mode: d.Mode}, nil
}

type redisConn struct {
	client *redis.Client
	key    string
	mode   string
}

func (c *redisConn) Send(ctx context.Context, payload []byte) error {
	var err error
	if c.mode == RedisPubSub {
		err = c.client.Publish(ctx, c.key, payload).Err()
	} else {
		err = c.client.RPush(ctx, c.key, payload).Err()
	}
	if err == redis.ErrClosed {
		return ErrClosed
	}
	return err
}

func (c *redisConn) LocalAddr() string {
	return "redis:" + c.client.Options().Addr
}

func (c *redisConn) Close() error {
	err := c.client.Close()
	if err == redis.ErrClosed {
		return nil
	}
	return err
}
