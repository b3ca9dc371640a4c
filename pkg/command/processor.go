// Package command dispatches external commands to the handlers mutating monitoring state
// and provides the sources external commands are read from.
package command

import (
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/history"
	"github.com/icinga/icingad/pkg/maintenance"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strings"
	"sync"
	"time"
)

// maxLoggedLine limits how much of a malformed line gets logged.
const maxLoggedLine = 256

// ErrUnknownCommand is returned by ExecuteCommand for verbs without handler.
var ErrUnknownCommand = errors.New("unknown external command")

// Processor executes external commands.
type Processor struct {
	registry *checkable.Registry
	manager  *maintenance.Manager
	history  history.Sink
	logger   *logging.Logger
	shutdown func()

	filesMu sync.Mutex
	// files being processed by PROCESS_FILE.
	files map[string]struct{}
}

// NewProcessor returns a Processor operating on the checkables of registry.
// shutdown is called for SHUTDOWN_PROCESS.
func NewProcessor(
	registry *checkable.Registry, manager *maintenance.Manager, sink history.Sink, logger *logging.Logger,
	shutdown func(),
) *Processor {
	return &Processor{
		registry: registry,
		manager:  manager,
		history:  sink,
		logger:   logger,
		shutdown: shutdown,
		files:    make(map[string]struct{}),
	}
}

// Execute parses and executes a single command line. Errors are logged, not returned,
// as a broken command must not affect the following ones.
func (p *Processor) Execute(line string) {
	ts, verb, args, err := ParseLine(line)
	if err != nil {
		MalformedCommandsTotal.Inc()
		p.logger.Warnw(
			"Dropping malformed external command", zap.String("line", utils.Ellipsize(line, maxLoggedLine)), zap.Error(err),
		)

		return
	}

	if err := p.ExecuteCommand(ts, verb, args); err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			p.logger.Debugw("Ignoring unknown external command", zap.String("command", verb))
			return
		}

		p.logger.Errorw("Can't execute external command", zap.String("command", verb), zap.Error(err))
	}
}

// ExecuteCommand executes verb with the given arguments as if issued at ts.
// Surplus arguments are joined into the last one, which allows semicolons in comments.
func (p *Processor) ExecuteCommand(ts time.Time, verb string, args []string) (err error) {
	cmd, ok := commands()[verb]
	if !ok {
		UnknownCommandsTotal.Inc()
		return errors.Wrapf(ErrUnknownCommand, "%q", verb)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}

		result := "ok"
		if err != nil {
			result = "error"
		}
		CommandsTotal.WithLabelValues(verb, result).Inc()
	}()

	if len(args) < cmd.args {
		return errors.Errorf("%s expects %d arguments, got %d", verb, cmd.args, len(args))
	}

	if len(args) > cmd.args && cmd.args > 0 {
		joined := strings.Join(args[cmd.args-1:], ";")
		args = append(args[:cmd.args-1:cmd.args-1], joined)
	}

	p.logger.Debugw("Executing external command", zap.String("command", verb), zap.Strings("arguments", args))

	return cmd.handler(p, ts, args)
}

func (p *Processor) recordComment(typ history.EventType, c *checkable.Checkable, cm checkable.Comment) {
	p.history.Record(history.Event{
		Time:        p.manager.Now(),
		Type:        typ,
		ObjectType:  c.Kind().String(),
		Object:      c.Name(),
		ReferenceId: cm.Id,
		LegacyId:    cm.LegacyId,
		Author:      cm.Author,
		Text:        cm.Text,
	})
}
