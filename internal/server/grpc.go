// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/anjanb/questdb/internal/logging"
)

// Health serves grpc.health.v1.Health. The overall status is SERVING while
// the query endpoint accepts requests.
type Health struct {
	srv    *grpc.Server
	health *health.Server
	log    *logging.Logger
}

// NewHealth returns a health server reporting SERVING.
func NewHealth(log *logging.Logger) *Health {
	if log == nil {
		log = logging.Nop()
	}
	h := &Health{srv: grpc.NewServer(), health: health.NewServer(), log: log}
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}

// Serve accepts connections on lis until Stop is called.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	h.log.Info(ctx, "grpc health listening", "addr", lis.Addr().String())
	return h.srv.Serve(lis)
}

// Stop marks the service NOT_SERVING and stops the server gracefully.
func (h *Health) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}
