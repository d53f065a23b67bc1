package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/pkg/natsutil"
)

const (
	// IngestSubject carries JSON-encoded DocumentRef messages.
	IngestSubject = "p4kb.ingest"
	// DLQSubject receives refs that failed MaxRetries times.
	DLQSubject = "p4kb.ingest.dlq"
	// MaxRetries before a ref is sent to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Ref     domain.DocumentRef `json:"ref"`
	Error   string             `json:"error"`
	Retries int                `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each received document
// ref through the ingestion service, re-publishing failures with an
// incremented retry header and dead-lettering after MaxRetries.
func StartConsumer(nc *nats.Conn, svc *Service, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var ref domain.DocumentRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			log.Error("ingest consumer: unmarshal failed", "error", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		added, err := svc.Ingest(context.Background(), ref)
		if err == nil {
			log.Info("ingest consumer: done", "doc", ref.Name, "added", added)
			return
		}

		retries++
		log.Error("ingest consumer: failed", "doc", ref.Name, "retry", retries, "error", err)

		if retries >= MaxRetries {
			dlq := dlqMessage{Ref: ref, Error: err.Error(), Retries: retries}
			if err := natsutil.Publish(context.Background(), nc, DLQSubject, dlq); err != nil {
				log.Error("ingest consumer: DLQ publish failed", "error", err)
			}
			return
		}

		retry := nats.NewMsg(IngestSubject)
		retry.Data = msg.Data
		retry.Header = nats.Header{}
		retry.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		if err := nc.PublishMsg(retry); err != nil {
			log.Error("ingest consumer: retry publish failed", "error", err)
		}
	})
}
