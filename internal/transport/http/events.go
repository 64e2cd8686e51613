package http

import (
	"encoding/json"
	"strings"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
)

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinPayload struct {
	Pin  string
	Name string
}

type answerPayload struct {
	Pin    string
	Name   string
	Answer string
}

type startTimerPayload struct {
	Pin      string
	Question domain.Question
}

// decodePin accepts either a bare pin ("111111" or 111111) or an object
// carrying a pin field.
func decodePin(raw json.RawMessage) (string, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) > 0 && raw[0] == '{' {
		var obj struct {
			Pin json.RawMessage `json:"pin"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", domain.ErrInvalidPayload
		}
		raw = obj.Pin
	}
	pin, err := domain.DecodeChoice(raw)
	if err != nil || pin == "" {
		return "", domain.ErrInvalidPayload
	}
	return pin, nil
}

func decodeJoin(raw json.RawMessage) (joinPayload, error) {
	var in struct {
		Pin  json.RawMessage `json:"pin"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return joinPayload{}, domain.ErrInvalidPayload
	}
	pin, err := decodePin(in.Pin)
	if err != nil {
		return joinPayload{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return joinPayload{}, domain.ErrInvalidPayload
	}
	return joinPayload{Pin: pin, Name: name}, nil
}

func decodeAnswer(raw json.RawMessage) (answerPayload, error) {
	var in struct {
		Pin    json.RawMessage `json:"pin"`
		Name   string          `json:"name"`
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return answerPayload{}, domain.ErrInvalidPayload
	}
	pin, err := decodePin(in.Pin)
	if err != nil {
		return answerPayload{}, err
	}
	choice, err := domain.DecodeChoice(in.Answer)
	if err != nil {
		return answerPayload{}, domain.ErrInvalidPayload
	}
	return answerPayload{Pin: pin, Name: strings.TrimSpace(in.Name), Answer: choice}, nil
}

// decodeStartTimer splits the routing pin from the question fields; the rest
// of the object is the question payload relayed to clients.
func decodeStartTimer(raw json.RawMessage) (startTimerPayload, error) {
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return startTimerPayload{}, domain.ErrInvalidPayload
	}
	pin, err := decodePin(q.Extra["pin"])
	if err != nil {
		return startTimerPayload{}, err
	}
	delete(q.Extra, "pin")
	if err := q.Validate(); err != nil {
		return startTimerPayload{}, err
	}
	return startTimerPayload{Pin: pin, Question: q}, nil
}
