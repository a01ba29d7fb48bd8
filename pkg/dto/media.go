package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// QueueMessage is the job envelope pushed by the owning application.
// Fields other than the media id are ignored.
type QueueMessage struct {
	// Data is kept raw because PHP serializes an empty array as [].
	Data json.RawMessage `json:"data"`
	// Raw dispatches put media_id at the top level.
	MediaID json.RawMessage `json:"media_id"`
}

// ParseMediaID extracts the media id from a raw queue payload. It prefers
// data.media_id and falls back to a top-level media_id. A data value that
// is not an object is ignored.
func ParseMediaID(raw []byte) (int64, error) {
	var msg QueueMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("parse queue message: %w", err)
	}
	if data := bytes.TrimSpace(msg.Data); len(data) > 0 && data[0] == '{' {
		var inner struct {
			MediaID json.RawMessage `json:"media_id"`
		}
		if err := json.Unmarshal(data, &inner); err != nil {
			return 0, fmt.Errorf("parse queue message data: %w", err)
		}
		if len(inner.MediaID) > 0 {
			return parseID(inner.MediaID)
		}
	}
	if len(msg.MediaID) > 0 {
		return parseID(msg.MediaID)
	}
	return 0, fmt.Errorf("queue message has no media_id")
}

func parseID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("media_id is null")
	}
	s := string(raw)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("media_id: %w", err)
		}
		s = strings.TrimSpace(s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 12.0 is accepted the same way int() accepts it on the producer side.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("media_id %q is not an integer", s)
		}
		id = int64(f)
	}
	if id <= 0 {
		return 0, fmt.Errorf("media_id %d is not positive", id)
	}
	return id, nil
}

// NewQueueMessage builds the envelope facectl pushes.
func NewQueueMessage(mediaID int64) ([]byte, error) {
	return json.Marshal(map[string]any{
		"data": map[string]int64{"media_id": mediaID},
	})
}

// Media is the owning application's media record (GET /media/{id}).
type Media struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	Path string    `json:"path"`
	Meta MediaMeta `json:"meta"`
}

// MediaMeta carries per-media overrides. The application stores meta as a
// free-form JSON column, so unknown keys are ignored.
type MediaMeta struct {
	FrameSkip *int `json:"frame_skip,omitempty"`
}

// UnmarshalJSON tolerates the shapes a PHP JSON column comes back in: null,
// an empty array, a JSON-encoded string, and frame_skip as a string.
func (m *MediaMeta) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.HasPrefix(data, []byte("[")):
		return nil
	case bytes.HasPrefix(data, []byte(`"`)):
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if strings.TrimSpace(inner) == "" {
			return nil
		}
		return m.UnmarshalJSON([]byte(inner))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fs, ok := raw["frame_skip"]
	if !ok || string(fs) == "null" {
		return nil
	}
	var n json.Number
	s := string(fs)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(fs, &s); err != nil {
			return fmt.Errorf("meta.frame_skip: %w", err)
		}
		n = json.Number(s)
	} else {
		n = json.Number(s)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("meta.frame_skip %q is not an integer", s)
	}
	skip := int(v)
	m.FrameSkip = &skip
	return nil
}
