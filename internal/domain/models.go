package domain

import (
	"encoding/json"
	"time"
)

// Participant is a named identity within one live session. Identity is the
// display name; the connection id is replaced on every reconnect.
type Participant struct {
	Name         string
	ConnectionID string
	Score        int
	Answer       string
	Answered     bool
	JoinedAt     time.Time
}

// ClearAnswer drops the answer recorded for the current round.
func (p *Participant) ClearAnswer() {
	p.Answer = ""
	p.Answered = false
}

// Question is the payload of a timed question. Time and CorrectOption are the
// only fields the server reads; everything else the instructor sent is kept
// in Extra and passed through to clients untouched.
type Question struct {
	Time          int                        `json:"time"`
	CorrectOption string                     `json:"correctOption"`
	Extra         map[string]json.RawMessage `json:"-"`
}

// WithTime returns a copy of q that reports seconds as its duration.
func (q Question) WithTime(seconds int) Question {
	q.Time = seconds
	return q
}

// Redacted returns a copy of q without the correct option.
func (q Question) Redacted() Question {
	q.CorrectOption = ""
	return q
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(q.Extra)+2)
	for k, v := range q.Extra {
		out[k] = v
	}
	t, err := json.Marshal(q.Time)
	if err != nil {
		return nil, err
	}
	out["time"] = t
	delete(out, "correctOption")
	if q.CorrectOption != "" {
		c, err := json.Marshal(q.CorrectOption)
		if err != nil {
			return nil, err
		}
		out["correctOption"] = c
	}
	return json.Marshal(out)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var parsed Question
	if raw, ok := fields["time"]; ok {
		if err := json.Unmarshal(raw, &parsed.Time); err != nil {
			return err
		}
		delete(fields, "time")
	}
	if raw, ok := fields["correctOption"]; ok {
		choice, err := DecodeChoice(raw)
		if err != nil {
			return err
		}
		parsed.CorrectOption = choice
		delete(fields, "correctOption")
	}
	parsed.Extra = fields
	*q = parsed
	return nil
}

// MaxQuestionSeconds bounds a question's duration so its deadline stays
// representable.
const MaxQuestionSeconds = 24 * 60 * 60

// Validate reports whether the question carries the fields a round needs.
func (q Question) Validate() error {
	if q.Time <= 0 || q.Time > MaxQuestionSeconds || q.CorrectOption == "" {
		return ErrInvalidPayload
	}
	return nil
}

// DecodeChoice reads a choice value sent as a JSON string or a bare scalar
// (number, bool). Scalars keep their JSON text, so 2 and "2" compare equal.
func DecodeChoice(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrInvalidPayload
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", ErrInvalidPayload
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return string(raw), nil
}

// Round is the current, or most recently closed, question of a session.
type Round struct {
	Question  Question
	StartedAt time.Time
	Deadline  time.Time
	Active    bool
}

// QuestionResult is delivered privately to one participant after a round.
type QuestionResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	NewScore      int    `json:"newScore"`
	CorrectOption string `json:"correctOption"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Report is an exported final snapshot of a session.
type Report struct {
	Pin        string             `json:"pin"`
	Entries    []LeaderboardEntry `json:"entries"`
	ExportedAt time.Time          `json:"exportedAt"`
}
