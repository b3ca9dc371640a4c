package command

import (
	"context"
	"github.com/icinga/icinga-go-library/backoff"
	"github.com/icinga/icinga-go-library/com"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/periodic"
	"github.com/icinga/icinga-go-library/retry"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

// RedisOptions configures a RedisSource.
type RedisOptions struct {
	Stream string `yaml:"stream" env:"STREAM" default:"icinga:commands"`
	// Field of the stream entries holding the command line.
	Field        string        `yaml:"field" env:"FIELD" default:"line"`
	Count        int64         `yaml:"count" env:"COUNT" default:"100"`
	BlockTimeout time.Duration `yaml:"block_timeout" env:"BLOCK_TIMEOUT" default:"1s"`
}

// Validate checks constraints in the supplied options and returns an error if they are violated.
func (o *RedisOptions) Validate() error {
	if o.Stream == "" || o.Field == "" {
		return errors.New("stream and field must be set")
	}

	if o.Count < 1 {
		return errors.New("count must be at least 1")
	}

	if o.BlockTimeout <= 0 {
		return errors.New("block_timeout must be positive")
	}

	return nil
}

// RedisSource executes the command lines added to a Redis stream.
// Processed entries are deleted from the stream.
type RedisSource struct {
	client    *redis.Client
	options   RedisOptions
	processor *Processor
	logger    *logging.Logger
	processed com.Counter
}

// NewRedisSource returns a RedisSource reading from the stream configured in options.
func NewRedisSource(client *redis.Client, options RedisOptions, processor *Processor, logger *logging.Logger) *RedisSource {
	return &RedisSource{client: client, options: options, processor: processor, logger: logger}
}

// Run executes stream entries until ctx is done. Entries left from before are executed first.
func (s *RedisSource) Run(ctx context.Context) error {
	defer periodic.Start(ctx, s.logger.Interval(), func(tick periodic.Tick) {
		if count := s.processed.Reset(); count > 0 {
			s.logger.Infof("Executed %d commands from %s in the last %s", count, s.options.Stream, tick.Elapsed)
		}
	}).Stop()

	s.logger.Infow("Reading external commands", zap.String("stream", s.options.Stream))

	lastId := "0-0"
	for {
		streams, err := s.xread(ctx, lastId)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		for _, stream := range streams {
			ids := make([]string, 0, len(stream.Messages))

			for _, message := range stream.Messages {
				lastId = message.ID
				ids = append(ids, message.ID)

				line, ok := message.Values[s.options.Field].(string)
				if !ok {
					s.logger.Warnw("Dropping stream entry without command",
						zap.String("id", message.ID), zap.String("field", s.options.Field))
					continue
				}

				s.processor.Execute(line)
				s.processed.Inc()
			}

			if len(ids) > 0 {
				if err := s.client.XDel(ctx, s.options.Stream, ids...).Err(); err != nil && ctx.Err() == nil {
					s.logger.Warnw("Can't delete processed stream entries", zap.Error(err))
				}
			}
		}
	}
}

// xread blocks until entries after lastId are available, retrying on connection errors.
func (s *RedisSource) xread(ctx context.Context, lastId string) ([]redis.XStream, error) {
	var streams []redis.XStream

	err := retry.WithBackoff(
		ctx,
		func(ctx context.Context) error {
			var err error
			streams, err = s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.options.Stream, lastId},
				Count:   s.options.Count,
				Block:   s.options.BlockTimeout,
			}).Result()

			if errors.Is(err, redis.Nil) {
				// Timed out without new entries.
				streams, err = nil, nil
			}

			return err
		},
		retry.Retryable,
		backoff.NewExponentialWithJitter(100*time.Millisecond, 10*time.Second),
		retry.Settings{
			OnRetryableError: func(_ time.Duration, _ uint64, err, lastErr error) {
				if lastErr == nil || err.Error() != lastErr.Error() {
					s.logger.Warnw("Can't read command stream. Retrying", zap.Error(err))
				}
			},
			OnSuccess: func(elapsed time.Duration, attempt uint64, _ error) {
				if attempt > 1 {
					s.logger.Infow("Command stream is readable again", zap.Duration("after", elapsed))
				}
			},
		},
	)

	return streams, err
}
