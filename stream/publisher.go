// Package stream feeds accepted scans into a Redis stream so the admin
// live-scans view can follow gates in real time without polling Postgres.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"gatescan/models"
)

const DefaultStream = "gatescan:scans"

type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream}
}

// PublishScan appends one accepted scan to the stream. Values are flat
// strings plus a JSON payload, so both field-level consumers and
// whole-record consumers can read the entry.
func (p *Publisher) PublishScan(ctx context.Context, req models.RecordScanRequest, res models.ScanResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling scan result: %w", err)
	}

	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"record_id":         strconv.FormatInt(res.RecordID, 10),
			"identifier":        req.Identifier,
			"event_location_id": strconv.FormatInt(req.EventLocationID, 10),
			"duplicate":         strconv.FormatBool(res.Duplicate),
			"scanned_at":        res.ScannedAt.Format(time.RFC3339),
			"data":              string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}
