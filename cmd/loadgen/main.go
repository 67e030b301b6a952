package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-queueingest/helpers/loadgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	projectID := flag.String("project", os.Getenv("GCP_PROJECT_ID"), "GCP project of the topic.")
	topicID := flag.String("topic", os.Getenv("PUBSUB_TOPIC_ID"), "Topic to publish to.")
	numSources := flag.Int("sources", 5, "Number of simulated sources.")
	rate := flag.Float64("rate", 2, "Messages per second per source.")
	duration := flag.Duration("duration", 30*time.Second, "How long to publish for.")
	pad := flag.Int("pad", 0, "Extra bytes of filler in every payload.")
	flag.Parse()

	if *projectID == "" || *topicID == "" {
		log.Fatal().Msg("both -project and -topic are required")
	}

	generator := &loadgen.JSONPayloadGenerator{Pad: *pad}
	sources := make([]*loadgen.Source, *numSources)
	for i := range sources {
		sources[i] = &loadgen.Source{
			ID:               fmt.Sprintf("loadgen-%03d", i),
			MessageRate:      *rate,
			PayloadGenerator: generator,
		}
	}

	// PUBSUB_EMULATOR_HOST is honoured by the Pub/Sub client itself.
	client := loadgen.NewPubSubClient(*projectID, *topicID, nil, log.Logger)
	lg := loadgen.NewLoadGenerator(client, sources, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := lg.Run(ctx, *duration)
	if err != nil {
		log.Fatal().Err(err).Msg("Load generation failed")
	}
	log.Info().Int("published", count).Str("topic_id", *topicID).Msg("Load generation complete.")
}
