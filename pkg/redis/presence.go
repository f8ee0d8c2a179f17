package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PresenceKeyPrefix = "talk:presence:user:"
	OnlineUsersKey    = "talk:online:users"
	// PresenceTTL should cover at least two websocket heartbeats.
	PresenceTTL = 2 * time.Minute
)

// Presence records which users hold a live websocket. Each user has a key
// with a TTL that heartbeats refresh, plus membership in one set.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client, ttl: PresenceTTL}
}

func presenceKey(userID uint) string {
	return PresenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Connect marks the user online.
func (p *Presence) Connect(ctx context.Context, userID uint) error {
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKey(userID), time.Now().Unix(), p.ttl)
	pipe.SAdd(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Refresh extends the TTL, re-creating the key if it already lapsed.
func (p *Presence) Refresh(ctx context.Context, userID uint) error {
	ok, err := p.client.Expire(ctx, presenceKey(userID), p.ttl).Result()
	if err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	if !ok {
		return p.Connect(ctx, userID)
	}
	return nil
}

// Disconnect marks the user offline.
func (p *Presence) Disconnect(ctx context.Context, userID uint) error {
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.SRem(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// Online reports, for each id, whether its presence key is alive.
func (p *Presence) Online(ctx context.Context, userIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	pipe := p.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check presence: %w", err)
	}
	for i, id := range userIDs {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}

// Sweep drops set members whose key has expired, for instance after a crash
// skipped Disconnect.
func (p *Presence) Sweep(ctx context.Context) (int, error) {
	members, err := p.client.SMembers(ctx, OnlineUsersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list online users: %w", err)
	}

	removed := 0
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			p.client.SRem(ctx, OnlineUsersKey, m)
			removed++
			continue
		}
		n, err := p.client.Exists(ctx, presenceKey(uint(id))).Result()
		if err != nil {
			return removed, fmt.Errorf("check presence: %w", err)
		}
		if n == 0 {
			p.client.SRem(ctx, OnlineUsersKey, m)
			removed++
		}
	}
	return removed, nil
}
