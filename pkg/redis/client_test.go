package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshmarket/storefront-backend/pkg/config"
)

func TestHitWindowCountsAndArmsExpiry(t *testing.T) {
	ctx := context.Background()
	mock := newFakeBackend()
	client := &Client{rdb: mock}

	for i := int64(1); i <= 2; i++ {
		w, err := client.HitWindow(ctx, "discount_preview:ip:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !w.Allowed() || w.Count != i {
			t.Fatalf("hit %d: unexpected window %+v", i, w)
		}
		if w.ResetIn != time.Minute {
			t.Fatalf("hit %d: expected reset 1m, got %s", i, w.ResetIn)
		}
	}

	w, err := client.HitWindow(ctx, "discount_preview:ip:1.2.3.4", 2, time.Minute)
	if err != nil {
		t.Fatalf("third hit: %v", err)
	}
	if w.Allowed() {
		t.Fatalf("expected third hit to be blocked")
	}
	if got := mock.expiries["fc:rl:discount_preview:ip:1.2.3.4"]; got != time.Minute.Milliseconds() {
		t.Fatalf("expected expiry armed once with window, got %d", got)
	}
}

func TestHitWindowFallsBackToEvalOnNoScript(t *testing.T) {
	mock := newFakeBackend()
	mock.noScript = true
	client := &Client{rdb: mock}

	w, err := client.HitWindow(context.Background(), "scope", 5, time.Second)
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if w.Count != 1 || mock.evals != 1 {
		t.Fatalf("expected eval fallback, count=%d evals=%d", w.Count, mock.evals)
	}
}

func TestHitWindowPropagatesErrors(t *testing.T) {
	mock := newFakeBackend()
	mock.err = errors.New("connection refused")
	client := &Client{rdb: mock}
	if _, err := client.HitWindow(context.Background(), "scope", 1, time.Second); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := (&Client{}).Get(context.Background(), "x"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{rdb: newFakeBackend()}

	ok, err := client.SetNX(ctx, "k", "v", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx: ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "other", time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx should not win: ok=%v err=%v", ok, err)
	}
	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, "k"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
	if err := client.Del(ctx); err != nil {
		t.Fatalf("del without keys: %v", err)
	}
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("cust|POST|/api/v1/orders", "abc"): "fc:idem:cust|POST|/api/v1/orders:abc",
		client.RateLimitKey("order_tracking:phone:h"):             "fc:rl:order_tracking:phone:h",
		client.RevokedTokenKey("jti"):                             "fc:revoked:jti",
		client.IdempotencyKey("scope", " "):                       "fc:idem:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options db=%d pool=%d dial=%s", opts.DB, opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	if err != nil {
		t.Fatalf("address config: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 {
		t.Fatalf("unexpected address options %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected missing url and address to fail")
	}
}

// noScriptErr mimics the server reply that triggers Script.Run's EVAL fallback.
type noScriptErr struct{}

func (noScriptErr) Error() string { return "NOSCRIPT No matching script" }

func (noScriptErr) RedisError() {}

type fakeBackend struct {
	data     map[string]string
	counters map[string]int64
	expiries map[string]int64
	noScript bool
	evals    int
	err      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		expiries: make(map[string]int64),
	}
}

func (f *fakeBackend) runWindow(keys []string, args []any) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	key := keys[0]
	f.counters[key]++
	if f.counters[key] == 1 {
		f.expiries[key] = args[0].(int64)
	}
	return redis.NewCmdResult([]any{f.counters[key], f.expiries[key]}, nil)
}

func (f *fakeBackend) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.evals++
	return f.runWindow(keys, args)
}

func (f *fakeBackend) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if f.noScript {
		return redis.NewCmdResult(nil, noScriptErr{})
	}
	return f.runWindow(keys, args)
}

func (f *fakeBackend) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeBackend) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeBackend) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeBackend) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func (f *fakeBackend) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeBackend) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeBackend) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeBackend) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeBackend) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
