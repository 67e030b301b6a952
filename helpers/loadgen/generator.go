package loadgen

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Source is one simulated producer in the load test.
type Source struct {
	ID               string
	MessageRate      float64
	PayloadGenerator PayloadGenerator

	seq atomic.Int64
}

// NextSeq returns the source's next message sequence number, starting at 1.
func (s *Source) NextSeq() int64 {
	return s.seq.Add(1)
}

// LoadGenerator drives every source at its own rate for a fixed duration.
type LoadGenerator struct {
	client         Client
	sources        []*Source
	logger         zerolog.Logger
	publishedCount int64
}

// NewLoadGenerator creates a new LoadGenerator.
func NewLoadGenerator(client Client, sources []*Source, logger zerolog.Logger) *LoadGenerator {
	return &LoadGenerator{
		client:  client,
		sources: sources,
		logger:  logger.With().Str("component", "LoadGenerator").Logger(),
	}
}

// Run publishes until duration elapses or ctx is cancelled and returns the
// number of messages the broker accepted.
func (lg *LoadGenerator) Run(ctx context.Context, duration time.Duration) (int, error) {
	atomic.StoreInt64(&lg.publishedCount, 0)
	lg.logger.Info().Int("num_sources", len(lg.sources)).Dur("duration", duration).Msg("Starting load generator")

	if err := lg.client.Connect(ctx); err != nil {
		lg.logger.Error().Err(err).Msg("Failed to connect client")
		return 0, err
	}
	defer lg.client.Disconnect()

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	for _, source := range lg.sources {
		wg.Add(1)
		go func(s *Source) {
			defer wg.Done()
			lg.runSource(runCtx, s)
		}(source)
	}

	wg.Wait()
	finalCount := int(atomic.LoadInt64(&lg.publishedCount))
	lg.logger.Info().Int("successful_publishes", finalCount).Msg("Load generator finished")
	return finalCount, nil
}

func (lg *LoadGenerator) runSource(ctx context.Context, source *Source) {
	if source.MessageRate <= 0 {
		lg.logger.Warn().Str("source_id", source.ID).Msg("Source has a message rate of 0, no messages will be sent")
		return
	}

	interval := time.Duration(float64(time.Second) / source.MessageRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := lg.client.Publish(ctx, source); err != nil {
				lg.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to publish message")
			} else if ok {
				atomic.AddInt64(&lg.publishedCount, 1)
			}
		}
	}
}

// JSONPayloadGenerator produces small JSON documents identifying the source
// and sequence number.
type JSONPayloadGenerator struct {
	// Pad adds a filler field of this many bytes.
	Pad int
	now func() time.Time
}

type jsonPayload struct {
	Source string    `json:"source"`
	Seq    int64     `json:"seq"`
	SentAt time.Time `json:"sent_at"`
	Pad    string    `json:"pad,omitempty"`
}

// GeneratePayload implements PayloadGenerator.
func (g *JSONPayloadGenerator) GeneratePayload(source *Source) ([]byte, error) {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	p := jsonPayload{Source: source.ID, Seq: source.NextSeq(), SentAt: now().UTC()}
	if g.Pad > 0 {
		pad := make([]byte, g.Pad)
		for i := range pad {
			pad[i] = 'x'
		}
		p.Pad = string(pad)
	}
	return json.Marshal(p)
}
