package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

func TestPoolReusesConnection(t *testing.T) {
	p := NewPool()
	t.Cleanup(func() { _ = p.Close() })

	first, err := p.GetConnection("passthrough:///bank-a")
	require.NoError(t, err)
	second, err := p.GetConnection("passthrough:///bank-a")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := p.GetConnection("passthrough:///bank-b")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestPoolReplacesShutdownConnection(t *testing.T) {
	p := NewPool()
	t.Cleanup(func() { _ = p.Close() })

	first, err := p.GetConnection("passthrough:///bank")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, connectivity.Shutdown, first.GetState())

	second, err := p.GetConnection("passthrough:///bank")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestPoolClose(t *testing.T) {
	p := NewPool()
	conn, err := p.GetConnection("passthrough:///bank")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Equal(t, connectivity.Shutdown, conn.GetState())

	_, ok := p.load("passthrough:///bank")
	assert.False(t, ok)
}

func TestTimeoutInterceptorAddsDeadline(t *testing.T) {
	var got time.Time
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		got, _ = ctx.Deadline()
		return nil
	}

	interceptor := TimeoutInterceptor(time.Minute)
	require.NoError(t, interceptor(context.Background(), "/m", nil, nil, nil, invoker))
	assert.WithinDuration(t, time.Now().Add(time.Minute), got, 5*time.Second)

	// 呼叫端的 deadline 優先
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want, _ := ctx.Deadline()
	require.NoError(t, interceptor(ctx, "/m", nil, nil, nil, invoker))
	assert.Equal(t, want, got)
}
