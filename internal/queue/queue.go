// Package queue provides the Redis-backed command cache: a FIFO list per
// account for commands awaiting terminal pickup, and a pub/sub channel per
// command_id so callers can wait for completion without polling the
// database.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cmdListPrefix = "mt5:cmds:"    // + account number
	cmdDonePrefix = "mt5:cmddone:" // + command id
	listTTL       = time.Hour
)

// Queue wraps a Redis client with the command-cache operations. It is a
// cache, not the source of truth — the store package's Command rows are
// authoritative, and SweepTimedOutCommands/UnfinishedCommands exist
// precisely because this cache can be lost.
type Queue struct {
	client *redis.Client
	mu     sync.Mutex
	subs   []*redis.PubSub
}

// New dials Redis at addr (e.g. "localhost:6379" or a full redis:// URL).
func New(addr string) (*Queue, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// fall back to treating addr as a bare host:port
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}
	log.Info().Msg("📬 command queue connected")
	return &Queue{client: client}, nil
}

// Push enqueues a command id onto an account's pending list.
func (q *Queue) Push(ctx context.Context, accountNumber int64, commandID string) error {
	key := listKey(accountNumber)
	if err := q.client.RPush(ctx, key, commandID).Err(); err != nil {
		return err
	}
	return q.client.Expire(ctx, key, listTTL).Err()
}

// PopBatch pops up to n command ids from an account's pending list, FIFO.
// Returns an empty slice (not an error) when the list is empty.
func (q *Queue) PopBatch(ctx context.Context, accountNumber int64, n int) ([]string, error) {
	key := listKey(accountNumber)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := q.client.LPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PublishCompletion announces that a command finished, waking anyone
// blocked in WaitForCompletion.
func (q *Queue) PublishCompletion(ctx context.Context, commandID string, success bool, response string) error {
	payload, err := json.Marshal(map[string]any{"success": success, "response": response})
	if err != nil {
		return err
	}
	return q.client.Publish(ctx, doneChannel(commandID), payload).Err()
}

// WaitForCompletion subscribes to a command's completion channel and blocks
// until a message arrives or ctx is cancelled. The HTTP handler layer uses
// this to implement /api/cmd_status long-poll semantics.
func (q *Queue) WaitForCompletion(ctx context.Context, commandID string) (success bool, response string, err error) {
	sub := q.client.Subscribe(ctx, doneChannel(commandID))
	q.mu.Lock()
	q.subs = append(q.subs, sub)
	q.mu.Unlock()
	defer q.unregister(sub)

	ch := sub.Channel()
	select {
	case <-ctx.Done():
		return false, "", ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return false, "", fmt.Errorf("queue: subscription closed")
		}
		var payload struct {
			Success  bool   `json:"success"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			return false, "", err
		}
		return payload.Success, payload.Response, nil
	}
}

// Requeue pushes a command id back to the head of an account's list — used
// when a claimed batch fails to reach the terminal and must be retried
// without losing FIFO order relative to newer commands.
func (q *Queue) Requeue(ctx context.Context, accountNumber int64, commandID string) error {
	return q.client.LPush(ctx, listKey(accountNumber), commandID).Err()
}

// Len reports how many commands are queued for an account.
func (q *Queue) Len(ctx context.Context, accountNumber int64) (int64, error) {
	return q.client.LLen(ctx, listKey(accountNumber)).Result()
}

func (q *Queue) unregister(sub *redis.PubSub) {
	_ = sub.Close()
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, s := range q.subs {
		if s == sub {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			break
		}
	}
}

// Close releases all open subscriptions and the underlying client.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, sub := range q.subs {
		_ = sub.Close()
	}
	q.subs = nil
	return q.client.Close()
}

func listKey(accountNumber int64) string {
	return fmt.Sprintf("%s%d", cmdListPrefix, accountNumber)
}

func doneChannel(commandID string) string {
	return cmdDonePrefix + commandID
}
