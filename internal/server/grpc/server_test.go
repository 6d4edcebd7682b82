package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := NewServer("bufnet")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
		assert.NoError(t, <-errCh)
	})

	return s, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_StartsNotServing(t *testing.T) {
	_, client := startServer(t)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceOverall))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServicePersona))
}

func TestServer_SetReady(t *testing.T) {
	s, client := startServer(t)

	s.SetReady(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceOverall))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceSTT))

	s.SetServing(ServiceSTT, false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceSTT))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServicePersona))
}
