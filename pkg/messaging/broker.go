package messaging

import (
	"context"
)

// DataPublished is the marker body broadcast when new data sits behind a key.
const DataPublished = "data published"

// Broker defines the interface for message brokers.
// Publishing goes to a named fanout exchange; every bound subscriber gets a copy.
type Broker interface {
	PublishFanout(ctx context.Context, exchange string, body []byte) error
	Subscribe(ctx context.Context, exchange string) (<-chan []byte, error)
	Close() error
}
