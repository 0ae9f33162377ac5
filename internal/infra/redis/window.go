package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var incrScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// fixedWindow counts events per key inside aligned windows of a fixed size.
type fixedWindow struct {
	client *goredis.Client
	prefix string
	size   time.Duration
	now    func() time.Time
}

func (w fixedWindow) key(subject string, at time.Time) string {
	seconds := int64(w.size / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	start := at.UTC().Unix() / seconds * seconds
	return fmt.Sprintf("%s:%s:%d", w.prefix, subject, start)
}

// incr bumps the counter of the current window and returns the new value.
func (w fixedWindow) incr(ctx context.Context, subject string) (int64, error) {
	seconds := int64(w.size / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return incrScript.Run(ctx, w.client, []string{w.key(subject, w.now())}, seconds).Int64()
}

func (w fixedWindow) current(ctx context.Context, subject string) (int64, error) {
	n, err := w.client.Get(ctx, w.key(subject, w.now())).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return n, err
}
