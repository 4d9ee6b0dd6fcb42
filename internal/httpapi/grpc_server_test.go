package httpapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type probeFunc func(ctx context.Context) error

func (f probeFunc) Check(ctx context.Context) error { return f(ctx) }

func TestHealthServerReflectsProbe(t *testing.T) {
	var failing error = errors.New("db down")
	hs := NewHealthServer(probeFunc(func(context.Context) error { return failing }))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		return resp.GetStatus()
	}

	if err := hs.Refresh(ctx); err == nil {
		t.Fatal("expected probe error")
	}
	if got := check(serviceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status %v, want NOT_SERVING", got)
	}

	failing = nil
	if err := hs.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v, want SERVING", got)
	}
	if got := check(serviceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v, want SERVING", got)
	}
}
