package command

import (
	"bufio"
	"context"
	"github.com/icinga/icinga-go-library/backoff"
	"github.com/icinga/icinga-go-library/com"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/periodic"
	"github.com/icinga/icinga-go-library/retry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"io"
	"io/fs"
	"os"
	"time"
)

// maxLineLength limits the length of a single command line.
const maxLineLength = 1 << 20

// PipeSource reads command lines from a named pipe.
type PipeSource struct {
	path      string
	processor *Processor
	logger    *logging.Logger
	processed com.Counter
}

// NewPipeSource returns a PipeSource for the named pipe at path.
func NewPipeSource(path string, processor *Processor, logger *logging.Logger) *PipeSource {
	return &PipeSource{path: path, processor: processor, logger: logger}
}

// Run creates the named pipe unless it exists and executes the lines written to it until ctx is done.
// The pipe is removed afterwards.
func (s *PipeSource) Run(ctx context.Context) error {
	if err := s.create(); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warnw("Can't remove command pipe", zap.String("path", s.path), zap.Error(err))
		}
	}()

	defer periodic.Start(ctx, s.logger.Interval(), func(tick periodic.Tick) {
		if count := s.processed.Reset(); count > 0 {
			s.logger.Infof("Executed %d commands from %s in the last %s", count, s.path, tick.Elapsed)
		}
	}).Stop()

	s.logger.Infow("Reading external commands", zap.String("path", s.path))

	err := retry.WithBackoff(
		ctx,
		s.read,
		always,
		backoff.NewExponentialWithJitter(100*time.Millisecond, 10*time.Second),
		retry.Settings{
			OnRetryableError: func(_ time.Duration, _ uint64, err, lastErr error) {
				if lastErr == nil || err.Error() != lastErr.Error() {
					s.logger.Warnw("Can't read command pipe. Retrying", zap.Error(err))
				}
			},
		},
	)
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (s *PipeSource) create() error {
	fi, err := os.Stat(s.path)
	switch {
	case err == nil:
		if fi.Mode()&fs.ModeNamedPipe == 0 {
			return errors.Errorf("%q exists but is not a named pipe", s.path)
		}

		return nil
	case errors.Is(err, fs.ErrNotExist):
		return errors.Wrap(mkfifo(s.path, 0o660), "can't create command pipe")
	default:
		return errors.Wrap(err, "can't stat command pipe")
	}
}

// read executes lines from the pipe until ctx is done or reading fails.
func (s *PipeSource) read(ctx context.Context) error {
	// Opened for writing too, so that the last writer closing the pipe does not end reading.
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "can't open command pipe")
	}
	defer func() { _ = f.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer stop()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			s.processor.Execute(line)
			s.processed.Inc()
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	err = scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return errors.Wrap(err, "can't read command pipe")
}

// always retries every read error. WithBackoff stops on its own once ctx is done.
func always(error) bool {
	return true
}
