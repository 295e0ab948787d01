// Package session defines the captured request/response record that the
// filter, storage and search layers operate on. Session values are treated
// as immutable: every transition and metadata update returns a new value and
// never mutates substructure shared with other holders.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session pairs a request with its optional response and lifecycle state.
// Two sessions are equal iff their IDs match; content may differ for the
// same identity.
type Session struct {
	ID                uuid.UUID      `json:"id"`
	Request           Request        `json:"request"`
	Response          *Response      `json:"response,omitempty"`
	State             State          `json:"state"`
	StartTime         time.Time      `json:"startTime"`
	ResponseStartTime *time.Time     `json:"responseStartTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	RequestDuration   *time.Duration `json:"requestDuration,omitempty"`
	Metadata          Metadata       `json:"metadata,omitempty"`
	RetryCount        int            `json:"retryCount"`
	DecryptedTLS      bool           `json:"decryptedTLS"`
	ParentID          *uuid.UUID     `json:"parentId,omitempty"`
	RelatedIDs        []uuid.UUID    `json:"relatedIds,omitempty"`
}

// New creates an initialized session for a request.
func New(req Request) Session {
	return Session{
		ID:        uuid.New(),
		Request:   req,
		State:     StateInitialized,
		StartTime: time.Now(),
	}
}

// Equal compares by identity only.
func (s Session) Equal(other Session) bool {
	return s.ID == other.ID
}

// Duration reports elapsed time for the session. Once an end time exists
// the value is fixed; before that it advances with the wall clock.
func (s Session) Duration() time.Duration {
	return s.durationAt(time.Now())
}

func (s Session) durationAt(now time.Time) time.Duration {
	switch {
	case s.EndTime != nil:
		return s.EndTime.Sub(s.StartTime)
	case s.ResponseStartTime != nil:
		var respDur time.Duration
		if s.Response != nil {
			respDur = s.Response.Duration
		}
		return now.Sub(*s.ResponseStartTime) + respDur
	default:
		return now.Sub(s.StartTime)
	}
}

// BeginSend transitions initialized -> sending.
func (s Session) BeginSend() Session {
	s.State = StateSending
	return s
}

// AwaitResponse transitions sending -> waiting and records the request
// phase duration.
func (s Session) AwaitResponse() Session {
	s.State = StateWaiting
	d := time.Since(s.StartTime)
	s.RequestDuration = &d
	return s
}

// BeginReceive transitions waiting -> receiving and stamps the response
// start time.
func (s Session) BeginReceive() Session {
	s.State = StateReceiving
	now := time.Now()
	s.ResponseStartTime = &now
	return s
}

// Complete transitions to completed with the final response.
func (s Session) Complete(resp Response) Session {
	s.State = StateCompleted
	r := resp.Clone()
	s.Response = &r
	now := time.Now()
	s.EndTime = &now
	return s
}

// Fail transitions to failed, synthesizing a placeholder response with
// status 0 carrying the error message.
func (s Session) Fail(err error) Session {
	s.State = StateFailed
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.Response = &Response{
		StatusCode:   0,
		Timestamp:    now,
		ErrorMessage: &msg,
	}
	s.EndTime = &now
	return s
}

// Cancel transitions any non-terminal state to cancelled. Terminal sessions
// are returned unchanged.
func (s Session) Cancel() Session {
	if s.State.IsTerminal() {
		return s
	}
	s.State = StateCancelled
	now := time.Now()
	s.EndTime = &now
	return s
}

// Retry produces a fresh attempt of the same session identity: state reset
// to initialized, response and timing cleared, retry counter bumped.
func (s Session) Retry() Session {
	s.State = StateInitialized
	s.Response = nil
	s.ResponseStartTime = nil
	s.EndTime = nil
	s.RequestDuration = nil
	s.StartTime = time.Now()
	s.RetryCount++
	return s
}

// WithMetadata returns a copy carrying the key. The metadata map is copied
// so the receiver's map is never shared.
func (s Session) WithMetadata(key string, value Value) Session {
	meta := s.Metadata.Clone()
	if meta == nil {
		meta = Metadata{}
	}
	meta[key] = value
	s.Metadata = meta
	return s
}

// WithoutMetadata returns a copy without the key.
func (s Session) WithoutMetadata(key string) Session {
	if _, ok := s.Metadata[key]; !ok {
		return s
	}
	meta := s.Metadata.Clone()
	delete(meta, key)
	s.Metadata = meta
	return s
}

// WithParent returns a copy marked as a sub-request of parent.
func (s Session) WithParent(parent uuid.UUID) Session {
	p := parent
	s.ParentID = &p
	return s
}

// WithRelated returns a copy with id appended to the related-session list.
// The list is copied, not shared.
func (s Session) WithRelated(id uuid.UUID) Session {
	related := make([]uuid.UUID, 0, len(s.RelatedIDs)+1)
	related = append(related, s.RelatedIDs...)
	related = append(related, id)
	s.RelatedIDs = related
	return s
}

// WithDecryptedTLS returns a copy flagged as having used TLS decryption.
func (s Session) WithDecryptedTLS() Session {
	s.DecryptedTLS = true
	return s
}

// Clone returns a fully independent deep copy.
func (s Session) Clone() Session {
	out := s
	out.Request = s.Request.Clone()
	if s.Response != nil {
		r := s.Response.Clone()
		out.Response = &r
	}
	if s.ResponseStartTime != nil {
		t := *s.ResponseStartTime
		out.ResponseStartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	if s.RequestDuration != nil {
		d := *s.RequestDuration
		out.RequestDuration = &d
	}
	out.Metadata = s.Metadata.Clone()
	if s.ParentID != nil {
		p := *s.ParentID
		out.ParentID = &p
	}
	if s.RelatedIDs != nil {
		out.RelatedIDs = append([]uuid.UUID(nil), s.RelatedIDs...)
	}
	return out
}
