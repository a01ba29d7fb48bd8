package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMediaID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "data envelope", raw: `{"uuid":"x","data":{"media_id":42}}`, want: 42},
		{name: "string id", raw: `{"data":{"media_id":"17"}}`, want: 17},
		{name: "top level raw dispatch", raw: `{"type":"photo","media_id":9,"meta":null}`, want: 9},
		{name: "empty array data falls back", raw: `{"data":[],"media_id":7}`, want: 7},
		{name: "null data falls back", raw: `{"data":null,"media_id":"8"}`, want: 8},
		{name: "object data without id falls back", raw: `{"data":{"uuid":"x"},"media_id":11}`, want: 11},
		{name: "empty array data only", raw: `{"data":[]}`, wantErr: true},
		{name: "data wins over top level", raw: `{"data":{"media_id":5},"media_id":6}`, want: 5},
		{name: "integral float", raw: `{"data":{"media_id":12.0}}`, want: 12},
		{name: "missing", raw: `{"data":{}}`, wantErr: true},
		{name: "null", raw: `{"data":{"media_id":null}}`, wantErr: true},
		{name: "fraction", raw: `{"data":{"media_id":1.5}}`, wantErr: true},
		{name: "zero", raw: `{"data":{"media_id":0}}`, wantErr: true},
		{name: "not json", raw: `media 12`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMediaID([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewQueueMessageParsesBack(t *testing.T) {
	raw, err := NewQueueMessage(77)
	require.NoError(t, err)
	id, err := ParseMediaID(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestMediaMetaShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{name: "object", raw: `{"id":1,"type":"video","path":"v.mp4","meta":{"frame_skip":3}}`, want: intPtr(3)},
		{name: "string number", raw: `{"id":1,"type":"video","path":"v.mp4","meta":{"frame_skip":"0"}}`, want: intPtr(0)},
		{name: "null meta", raw: `{"id":1,"type":"video","path":"v.mp4","meta":null}`},
		{name: "empty php array", raw: `{"id":1,"type":"video","path":"v.mp4","meta":[]}`},
		{name: "encoded string", raw: `{"id":1,"type":"video","path":"v.mp4","meta":"{\"frame_skip\":7}"}`, want: intPtr(7)},
		{name: "absent", raw: `{"id":1,"type":"photo","path":"p.jpg"}`},
		{name: "other keys", raw: `{"id":1,"type":"photo","path":"p.jpg","meta":{"error":"old"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Media
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &m))
			assert.Equal(t, tt.want, m.Meta.FrameSkip)
		})
	}
}

func TestBBoxFieldOrder(t *testing.T) {
	b, err := json.Marshal(BBox{Top: 1, Right: 2, Bottom: 3, Left: 4})
	require.NoError(t, err)
	assert.Equal(t, `{"top":1,"right":2,"bottom":3,"left":4}`, string(b))
}

func intPtr(v int) *int { return &v }
