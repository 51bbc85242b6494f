package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/config"
	"github.com/miradorstack/attrition-predictor/internal/models"
)

func TestServerServesGRPCAndHTTPOnOnePort(t *testing.T) {
	stub := &serverStub{}
	cfg := config.ServerConfig{Address: "127.0.0.1:0", RequestTimeout: time.Second, GracefulTimeout: time.Second}
	server, err := NewServer(cfg, nil, stub, newTestRouter(stub, HTTPOptions{}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
		defer cancel()
		server.Shutdown(ctx)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	resp, err := http.Get("http://" + server.Address() + "/healthz")
	if err != nil {
		t.Fatalf("http get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("http status = %d", resp.StatusCode)
	}

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health = %v", health.GetStatus())
	}

	req, err := structpb.NewStruct(map[string]any{"Age": 41})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	out, err := NewPredictorClient(conn).Predict(ctx, req)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	pred, err := FromProtoPrediction(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pred.Label != models.LabelNo {
		t.Fatalf("label = %s", pred.Label)
	}
	if !stub.deadline {
		t.Fatalf("timeout interceptor did not set a deadline")
	}
}
