package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestHealthServerReportsStatus(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := NewHealthServer("salon")
	go func() { _ = hs.Serve(lis, nil) }()
	defer hs.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, lis.Addr().String(), DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ok, err := Check(ctx, conn, "salon")
	if err != nil || ok {
		t.Fatalf("expected NOT_SERVING before ready, ok=%v err=%v", ok, err)
	}
	hs.SetServing("salon", true)
	ok, err = Check(ctx, conn, "salon")
	if err != nil || !ok {
		t.Fatalf("expected SERVING, ok=%v err=%v", ok, err)
	}
}

func TestServerInterceptorAssignsRequestID(t *testing.T) {
	var seen string
	interceptor := UnaryServerRequestIDInterceptor()
	md := metadata.Pairs(RequestIDMetadataKey, "req-123")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "req-123" {
		t.Fatalf("expected propagated id, got %q", seen)
	}
}


func TestServerInterceptorMintsRequestID(t *testing.T) {
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestDialTimesOutWithoutServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()

	if _, err := Dial(context.Background(), addr, DialOptions{Timeout: 200 * time.Millisecond}); err == nil {
		t.Fatal("expected dial to fail against a closed port")
	}
}
