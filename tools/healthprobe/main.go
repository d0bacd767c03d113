package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
)

// Exits 0 when the gRPC health endpoint reports SERVING. Used as a container
// liveness probe for salon-service.
func main() {
	var (
		addr    = flag.String("addr", "localhost:9090", "grpc health address")
		service = flag.String("service", "", "service name (empty for overall status)")
		timeout = flag.Duration("timeout", 3*time.Second, "dial and check timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, *addr, grpcx.DialOptions{Timeout: *timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(2)
	}
	defer conn.Close()

	serving, err := grpcx.Check(ctx, conn, *service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		os.Exit(2)
	}
	if !serving {
		fmt.Println("NOT_SERVING")
		os.Exit(1)
	}
	fmt.Println("SERVING")
}
