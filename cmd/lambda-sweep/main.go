package main

// Build the scheduled sweep binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-sweep

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"rowshare-backend/internal/bootstrap"
	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

type sweepResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

func handler(ctx context.Context, event events.CloudWatchEvent) (sweepResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return sweepResponse{}, initErr
	}

	res, err := app.RowsService.Sweep(ctx)
	if err != nil {
		telemetry.Error("sweep.failed", map[string]any{"err": err, "event_id": event.ID})
		return sweepResponse{}, err
	}
	telemetry.Info("sweep.scheduled", map[string]any{"event_id": event.ID, "deleted": res.Deleted})
	return sweepResponse{Success: true, Message: res.Message, DeletedCount: res.Deleted}, nil
}

func main() {
	lambda.Start(handler)
}
