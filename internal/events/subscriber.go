package events

import "context"

// Subscriber blocks delivering messages matching the channel patterns until
// ctx is cancelled or the connection fails.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// ChannelPublisher publishes a raw payload on a named channel.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
