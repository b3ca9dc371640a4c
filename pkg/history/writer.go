package history

import (
	"context"
	"github.com/icinga/icinga-go-library/backoff"
	"github.com/icinga/icinga-go-library/com"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/periodic"
	"github.com/icinga/icinga-go-library/retry"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

const schema = `CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_time TIMESTAMP NOT NULL,
	event_type TEXT NOT NULL,
	object_type TEXT NOT NULL,
	object_name TEXT NOT NULL,
	reference_id TEXT NOT NULL,
	legacy_id INTEGER NOT NULL,
	author TEXT NOT NULL,
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_object ON history (object_name, event_time);`

const insert = `INSERT INTO history
	(event_time, event_type, object_type, object_name, reference_id, legacy_id, author, text)
	VALUES (:event_time, :event_type, :object_type, :object_name, :reference_id, :legacy_id, :author, :text)`

// Writer is a Sink buffering events in memory and writing them to the database from Run.
type Writer struct {
	db      *sqlx.DB
	logger  *logging.Logger
	events  chan Event
	written com.Counter
}

// Open connects to the database, creates the schema if necessary and returns a Writer
// buffering up to buffer events.
func Open(driver, dsn string, buffer int, logger *logging.Logger) (*Writer, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s database", driver)
	}

	// SQLite allows only one writer at a time and each connection to ":memory:" is a database of its own.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "can't create history schema")
	}

	return &Writer{
		db:     db,
		logger: logger,
		events: make(chan Event, buffer),
	}, nil
}

// Record queues e for writing. If the buffer is full, e is dropped.
func (w *Writer) Record(e Event) {
	select {
	case w.events <- e:
	default:
		EventsDroppedTotal.Inc()
		w.logger.Warnw("History buffer full, dropping event", zap.String("type", string(e.Type)))
	}
}

// Run writes queued events until ctx is done. Events still queued then are written before returning.
func (w *Writer) Run(ctx context.Context) error {
	progress := periodic.Start(ctx, w.logger.Interval(), func(tick periodic.Tick) {
		if count := w.written.Reset(); count > 0 {
			w.logger.Infof("Wrote %d history events in the last %s", count, tick.Elapsed)
		}
	})
	defer func() {
		progress.Stop()
		w.logger.Debugf("Wrote %d history events in total", w.written.Total())
	}()

	for {
		select {
		case e := <-w.events:
			if err := w.write(ctx, e); err != nil {
				if ctx.Err() != nil {
					return w.drain(e)
				}

				return err
			}
		case <-ctx.Done():
			return w.drain()
		}
	}
}

// Select returns the events recorded for the given object ordered by time.
func (w *Writer) Select(ctx context.Context, object string) ([]Event, error) {
	var events []Event
	err := w.db.SelectContext(ctx, &events, `SELECT event_time, event_type, object_type, object_name,
		reference_id, legacy_id, author, text FROM history WHERE object_name = ? ORDER BY event_time, id`, object)

	return events, errors.Wrap(err, "can't select history")
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

func (w *Writer) write(ctx context.Context, e Event) error {
	err := retry.WithBackoff(
		ctx,
		func(ctx context.Context) error {
			_, err := w.db.NamedExecContext(ctx, insert, e)
			return err
		},
		isBusy,
		backoff.NewExponentialWithJitter(10*time.Millisecond, time.Second),
		retry.Settings{
			Timeout: 30 * time.Second,
			OnRetryableError: func(_ time.Duration, attempt uint64, err, _ error) {
				w.logger.Debugw("Retrying history write", zap.Uint64("attempt", attempt), zap.Error(err))
			},
		},
	)
	if err != nil {
		if isBusy(err) || ctx.Err() != nil {
			return err
		}

		// A single broken event must not stop the history.
		EventsDroppedTotal.Inc()
		w.logger.Errorw("Can't write history event", zap.String("type", string(e.Type)), zap.Error(err))

		return nil
	}

	w.written.Inc()
	EventsWrittenTotal.WithLabelValues(string(e.Type)).Inc()

	return nil
}

// drain writes pending and all queued events.
func (w *Writer) drain(pending ...Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, e := range pending {
		if err := w.write(ctx, e); err != nil {
			return errors.Wrap(err, "can't flush history")
		}
	}

	for {
		select {
		case e := <-w.events:
			if err := w.write(ctx, e); err != nil {
				return errors.Wrap(err, "can't flush history")
			}
		default:
			return nil
		}
	}
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	return false
}
