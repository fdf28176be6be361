// Package dispatch decides where a due-dose notification goes. Scheduling
// correctness never depends on delivery: the dispatcher enqueues and the
// relay publishes, both outside the sweep's critical path.
package dispatch

import "fmt"

// Channel is a closed set of delivery channels. Adding a channel means
// adding a constant here and a case to Topic and ParseChannel, which the
// compiler and tests check; there is no silent default branch.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// AllChannels lists every known channel.
func AllChannels() []Channel {
	return []Channel{ChannelPush, ChannelSMS, ChannelEmail}
}

// ParseChannel validates a channel name from configuration.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelPush:
		return ChannelPush, nil
	case ChannelSMS:
		return ChannelSMS, nil
	case ChannelEmail:
		return ChannelEmail, nil
	}
	return "", fmt.Errorf("unknown delivery channel %q", s)
}

// Topic maps a channel to its Redpanda topic.
func (c Channel) Topic() (string, error) {
	switch c {
	case ChannelPush:
		return TopicNotificationsPush, nil
	case ChannelSMS:
		return TopicNotificationsSMS, nil
	case ChannelEmail:
		return TopicNotificationsEmail, nil
	}
	return "", fmt.Errorf("unknown delivery channel %q", string(c))
}

// Topic names for the notification pipeline.
const (
	TopicNotificationsPush  = "notifications.push"
	TopicNotificationsSMS   = "notifications.sms"
	TopicNotificationsEmail = "notifications.email"
	TopicDeadLetter         = "notifications.deadletter"
)
