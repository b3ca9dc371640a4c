package checkable

import (
	"sort"
	"time"
)

// CommentType describes where a comment comes from.
type CommentType uint8

const (
	CommentUser CommentType = iota + 1
	CommentAcknowledgement
)

// String implements the fmt.Stringer interface.
func (t CommentType) String() string {
	switch t {
	case CommentUser:
		return "comment"
	case CommentAcknowledgement:
		return "ack"
	default:
		return "unknown"
	}
}

// Comment is a note attached to a checkable.
type Comment struct {
	Id         string      `json:"id"`
	LegacyId   int         `json:"legacy_id"`
	EntryType  CommentType `json:"entry_type"`
	EntryTime  time.Time   `json:"entry_time"`
	Author     string      `json:"author"`
	Text       string      `json:"text"`
	Persistent bool        `json:"persistent"`
	ExpireTime time.Time   `json:"expire_time"`
}

// AddComment attaches cm to c.
func (c *Checkable) AddComment(cm *Comment) {
	c.mu.Lock()
	c.comments[cm.Id] = cm
	c.mu.Unlock()

	c.NotifyAttributeChanged(AttrComments)
}

// Comments returns copies of c's comments ordered by legacy id.
func (c *Checkable) Comments() []Comment {
	c.mu.Lock()
	comments := make([]Comment, 0, len(c.comments))
	for _, cm := range c.comments {
		comments = append(comments, *cm)
	}
	c.mu.Unlock()

	sort.Slice(comments, func(i, j int) bool {
		return comments[i].LegacyId < comments[j].LegacyId
	})

	return comments
}

// CommentByLegacyId returns a copy of the comment with the given legacy id.
func (c *Checkable) CommentByLegacyId(legacyId int) (Comment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cm := range c.comments {
		if cm.LegacyId == legacyId {
			return *cm, true
		}
	}

	return Comment{}, false
}

// RemoveComment removes the comment with the given id and reports whether it existed.
func (c *Checkable) RemoveComment(id string) bool {
	c.mu.Lock()
	_, ok := c.comments[id]
	delete(c.comments, id)
	c.mu.Unlock()

	if ok {
		c.NotifyAttributeChanged(AttrComments)
	}

	return ok
}

// RemoveComments removes all comments of the given types, or all comments if none given,
// and returns the removed ones.
func (c *Checkable) RemoveComments(types ...CommentType) []Comment {
	var removed []Comment

	c.mu.Lock()
	for id, cm := range c.comments {
		if len(types) > 0 && !containsType(types, cm.EntryType) {
			continue
		}

		removed = append(removed, *cm)
		delete(c.comments, id)
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.NotifyAttributeChanged(AttrComments)
	}

	return removed
}

func containsType(types []CommentType, t CommentType) bool {
	for _, tt := range types {
		if tt == t {
			return true
		}
	}

	return false
}
