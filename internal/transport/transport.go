package transport

import "context"

// Transport is a newline-delimited text channel between the device and a host.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
}

// StatusTargetResolver is implemented by transports that can describe their peer.
type StatusTargetResolver interface {
	StatusTarget() string
}
