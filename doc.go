/*
Package agent contains the publisher and subscriber loops of the courier agent,
a small MQTT device agent that either publishes synthetic sensor readings or
logs the readings it receives, and keeps its broker session alive by polling
liveness and replacing dead sessions with freshly connected ones.

Example:

	package main

	import (
		"context"
		"os"
		"os/signal"

		agent "github.com/gojek/courier-agent"
		"github.com/gojek/courier-agent/config"
	)

	func main() {
		cfg, err := config.Load("agent.yaml")
		if err != nil {
			panic(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		p := agent.NewPublisher(cfg)

		if err := p.Run(ctx, p.ClientID()); err != nil {
			os.Exit(1)
		}
	}
*/
package agent // import "github.com/gojek/courier-agent"
