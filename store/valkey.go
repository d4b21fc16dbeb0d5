package store

import (
	"context"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// updateRetries bounds the optimistic WATCH/MULTI/EXEC loop in Update.
const updateRetries = 8

// ValkeyKV is a Valkey (Redis-compatible) KV for deployments running more
// than one engine instance: the decision callback and the relying party's
// poll may land on different processes, so session state must live in a
// shared store.
type ValkeyKV struct {
	client valkey.Client
}

// NewValkeyKV connects to a Valkey server. addr example: "127.0.0.1:6379".
func NewValkeyKV(addr string) (*ValkeyKV, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &ValkeyKV{client: cli}, nil
}

// NewValkeyKVWithClient wraps an existing Valkey client.
func NewValkeyKVWithClient(client valkey.Client) *ValkeyKV {
	return &ValkeyKV{client: client}
}

// SetIfAbsent issues SET key value NX EX ttl. A nil reply means the key was
// already present.
func (v *ValkeyKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res := v.client.Do(ctx, v.client.B().Set().Key(key).Value(value).Nx().Ex(ttl).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// Get returns the current value or ErrKeyNotFound.
func (v *ValkeyKV) Get(ctx context.Context, key string) (string, error) {
	res := v.client.Do(ctx, v.client.B().Get().Key(key).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	val, err := res.ToString()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, nil
}

// Update runs fn under WATCH on a dedicated connection. EXEC returning a nil
// reply means another writer touched the key between WATCH and EXEC; the
// loop re-reads and retries.
func (v *ValkeyKV) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return v.client.Dedicated(func(c valkey.DedicatedClient) error {
		for attempt := 0; attempt < updateRetries; attempt++ {
			if err := c.Do(ctx, c.B().Watch().Key(key).Build()).Error(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}

			current := ""
			exists := true
			res := c.Do(ctx, c.B().Get().Key(key).Build())
			if err := res.Error(); err != nil {
				if !valkey.IsValkeyNil(err) {
					_ = c.Do(ctx, c.B().Unwatch().Build()).Error()
					return fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				exists = false
			} else {
				val, err := res.ToString()
				if err != nil {
					_ = c.Do(ctx, c.B().Unwatch().Build()).Error()
					return fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				current = val
			}

			next, ttl, remove, err := fn(current, exists)
			if err != nil {
				_ = c.Do(ctx, c.B().Unwatch().Build()).Error()
				return err
			}

			cmds := make([]valkey.Completed, 0, 3)
			cmds = append(cmds, c.B().Multi().Build())
			switch {
			case remove:
				cmds = append(cmds, c.B().Del().Key(key).Build())
			case ttl > 0:
				cmds = append(cmds, c.B().Set().Key(key).Value(next).Px(ttl).Build())
			default:
				cmds = append(cmds, c.B().Set().Key(key).Value(next).Build())
			}
			cmds = append(cmds, c.B().Exec().Build())

			resps := c.DoMulti(ctx, cmds...)
			execErr := resps[len(resps)-1].Error()
			if execErr == nil {
				return nil
			}
			if !valkey.IsValkeyNil(execErr) {
				return fmt.Errorf("%w: %v", ErrUnavailable, execErr)
			}
			// aborted by a concurrent writer; retry
		}
		return ErrTxConflict
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (v *ValkeyKV) Delete(ctx context.Context, key string) error {
	if err := v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (v *ValkeyKV) Close() error {
	v.client.Close()
	return nil
}
