package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/afnaayusuf/kintsugi/pkg/log"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt/topic"
)

// ExampleClient shows how a presence watcher connects, follows the online
// topic of every vehicle and shuts down.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "kintsugi-feed-example",
		KeepAlive:      60,
		ConnectTimeout: 5 * time.Second,
		CleanStart:     true,
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	// Start returns immediately; the connection is made in the background.
	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}
	defer client.Disconnect(ctx)

	filter := topic.NewBuilder("iov/v1").BuildWildcard("online")
	if err := client.Subscribe(ctx, filter, 1, func(_ context.Context, t string, payload []byte) {
		fmt.Printf("%s: %s\n", t, payload)
	}); err != nil {
		log.Error(err, "Failed to subscribe", "topic", filter)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.AwaitConnection(waitCtx); err != nil {
		log.Error(err, "Broker not reachable")
	}
}
