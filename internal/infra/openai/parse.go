package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
)

// framePayload mirrors the answer shape. Pointers distinguish absent keys from zero values.
type framePayload struct {
	Points   *map[string]int `json:"points"`
	Passes   *int            `json:"passes"`
	Rebounds *map[string]int `json:"rebounds"`
}

// ParseFrameEvents turns a model answer into a record for the given frame.
// Every failure wraps entity.ErrParse.
func ParseFrameEvents(frameID, content string) (*entity.FrameEventRecord, error) {
	body, err := stripWrapping(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var p framePayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", entity.ErrParse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after payload", entity.ErrParse)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	return &entity.FrameEventRecord{
		Frame:    frameID,
		Points:   *p.Points,
		Passes:   *p.Passes,
		Rebounds: *p.Rebounds,
	}, nil
}

func (p framePayload) validate() error {
	var missing []string
	if p.Points == nil || *p.Points == nil {
		missing = append(missing, "points")
	}
	if p.Passes == nil {
		missing = append(missing, "passes")
	}
	if p.Rebounds == nil || *p.Rebounds == nil {
		missing = append(missing, "rebounds")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	if *p.Passes < 0 {
		return fmt.Errorf("negative passes: %d", *p.Passes)
	}
	for field, m := range map[string]map[string]int{"points": *p.Points, "rebounds": *p.Rebounds} {
		for jersey, n := range m {
			if n < 0 {
				return fmt.Errorf("negative %s for jersey %q: %d", field, jersey, n)
			}
		}
	}
	return nil
}

var errNoObject = errors.New("no JSON object in response")

// stripWrapping prefers the body of the first code fence anywhere in the answer, dropping its
// language tag, and then keeps the outermost {...} span of what is left.
func stripWrapping(content string) (string, error) {
	s := strings.TrimSpace(content)

	if open := strings.Index(s, "```"); open >= 0 {
		body := s[open+3:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		// language tag runs until the first newline or brace
		if i := strings.IndexAny(body, "\n{"); i >= 0 && !strings.Contains(body[:i], "}") {
			body = body[i:]
		}
		if strings.Contains(body, "{") {
			s = body
		}
	}
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", errNoObject
	}
	return s[start : end+1], nil
}
