package redis

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.25, math.MaxFloat32, float32(math.Inf(-1))}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector() error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %v != %v", in, out)
	}
}

func TestDecodeVectorRejectsTruncatedBlob(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("http://not-redis"); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}

func TestPingerReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	p := NewPinger(client)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if p.Name() != "redis" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if err := p.Ping(ctx); err == nil {
		t.Fatalf("expected ping error for unreachable server")
	}
}
