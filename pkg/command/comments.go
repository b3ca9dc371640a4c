package command

import (
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/history"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

func addHostComment(p *Processor, ts time.Time, args []string) error {
	h, err := p.host(args[0])
	if err != nil {
		return err
	}

	return p.addComment(h, ts, args[1:])
}

func addSvcComment(p *Processor, ts time.Time, args []string) error {
	s, err := p.service(args[0], args[1])
	if err != nil {
		return err
	}

	return p.addComment(s, ts, args[2:])
}

// addComment parses persistent;author;comment.
func (p *Processor) addComment(c *checkable.Checkable, ts time.Time, args []string) error {
	persistent, err := parseBool(args[0], "persistent")
	if err != nil {
		return err
	}

	cm := p.registry.NewComment(c, checkable.CommentUser, args[1], args[2], persistent, ts, time.Time{})
	p.recordComment(history.CommentAdded, c, cm)

	p.logger.Infow("Added comment",
		zap.String("object", c.Name()), zap.Int("legacy_id", cm.LegacyId), zap.String("author", cm.Author))

	return nil
}

func delComment(p *Processor, _ time.Time, args []string) error {
	legacyId, err := parseInt(args[0], "comment id")
	if err != nil {
		return err
	}

	c, cm, ok := p.registry.CommentByLegacyId(int(legacyId))
	if !ok {
		return errors.Errorf("comment %d does not exist", legacyId)
	}

	if c.RemoveComment(cm.Id) {
		p.recordComment(history.CommentRemoved, c, cm)
		p.logger.Infow("Removed comment", zap.String("object", c.Name()), zap.Int64("legacy_id", legacyId))
	}

	return nil
}

func delAllComments(p *Processor, c *checkable.Checkable) error {
	removed := c.RemoveComments()
	for _, cm := range removed {
		p.recordComment(history.CommentRemoved, c, cm)
	}

	p.logger.Infow("Removed all comments", zap.String("object", c.Name()), zap.Int("count", len(removed)))

	return nil
}
