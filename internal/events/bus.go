// Package events wraps the process-wide event bus used for connectivity
// transitions and for the user-visible sync banner state. Components publish
// and subscribe by topic; the UI layer (out of scope here) renders the
// banner from TopicBanner events.
package events

import (
	evbus "github.com/asaskevich/EventBus"
)

const (
	// TopicBanner carries a BannerState value.
	TopicBanner = "sync:banner"

	// TopicNetOnline and TopicNetOffline fire on connectivity transitions.
	TopicNetOnline  = "net:online"
	TopicNetOffline = "net:offline"
)

// BannerState is the user-visible sync indicator.
type BannerState string

const (
	BannerHidden  BannerState = "hidden"
	BannerOffline BannerState = "offline"
	BannerSyncing BannerState = "syncing"
)

type Bus struct {
	bus evbus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) Publish(topic string, args ...any) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers fn for topic. fn must be a function whose signature
// matches the published arguments.
func (b *Bus) Subscribe(topic string, fn any) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers fn to run on its own goroutine per event.
func (b *Bus) SubscribeAsync(topic string, fn any) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

func (b *Bus) Unsubscribe(topic string, fn any) error {
	return b.bus.Unsubscribe(topic, fn)
}

// WaitAsync blocks until all async callbacks have completed.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
