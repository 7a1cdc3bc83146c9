package proto

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	iface "LaserRange/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type MockProvider struct {
	mu sync.Mutex
	st iface.Status
}

func (m *MockProvider) Status() iface.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

func dial(t *testing.T, srv *Server) *RangeServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := Serve(lis, srv)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewRangeServiceClient(conn)
}

func TestRangeService(t *testing.T) {
	provider := &MockProvider{st: iface.Status{
		InstanceID:   "bench-1",
		Phase:        "calibrating",
		Samples:      3,
		SampleTarget: 5,
		Frames:       12,
	}}
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := dial(t, NewServer(provider, cancel))

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	t.Run("Test GetStatus", func(t *testing.T) {
		st, err := client.GetStatus(ctx)
		require.NoError(t, err)
		m := st.AsMap()
		assert.Equal(t, "bench-1", m["instanceId"])
		assert.Equal(t, "calibrating", m["phase"])
		assert.Equal(t, 3.0, m["samples"])
		assert.Equal(t, 12.0, m["frames"])
		assert.Equal(t, false, m["hasReading"])
	})

	t.Run("Test GetStatus Reflects Phase", func(t *testing.T) {
		provider.mu.Lock()
		provider.st.Phase = "estimating"
		provider.st.HasReading = true
		provider.st.Distance = 200
		provider.st.WithinTolerance = true
		provider.mu.Unlock()

		st, err := client.GetStatus(ctx)
		require.NoError(t, err)
		m := st.AsMap()
		assert.Equal(t, "estimating", m["phase"])
		assert.Equal(t, 200.0, m["distance"])
		assert.Equal(t, true, m["withinTolerance"])
	})

	t.Run("Test Shutdown", func(t *testing.T) {
		require.NoError(t, client.Shutdown(ctx))
		select {
		case <-loopCtx.Done():
		case <-time.After(time.Second):
			t.Fatal("Shutdown did not cancel the loop context")
		}
		// repeated calls are harmless
		assert.NoError(t, client.Shutdown(ctx))
	})
}

func TestStartGRPCServer_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()

	_, err = StartGRPCServer(l.Addr().(*net.TCPAddr).Port, NewServer(&MockProvider{}, func() {}))
	assert.Error(t, err)
}
