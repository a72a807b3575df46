package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherLookup returns nil when no publisher exists for the topic.
type publisherLookup func(topic string) topicPublisher

type pubsubHandles interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

func lookupFromClient(client pubsubHandles) publisherLookup {
	return func(topic string) topicPublisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return &gcpTopic{publisher: p}
	}
}

type gcpTopic struct {
	publisher *gcppubsub.Publisher
}

func (g *gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if g == nil || g.publisher == nil {
		return nil
	}
	return gcpResult{result: g.publisher.Publish(ctx, msg)}
}

type gcpResult struct {
	result *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	return r.result.Get(ctx)
}
