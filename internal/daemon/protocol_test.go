package daemon

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sovereignerr "github.com/Aman-CERP/sovereign/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_MarshalsArgsOmitEmpty(t *testing.T) {
	req := Request{Command: "/stats"}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"/stats"}`, string(data))
}

func TestRequest_MarshalsWithArgs(t *testing.T) {
	args := "/some/path"
	req := Request{Command: "/index", Args: &args}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"/index","args":"/some/path"}`, string(data))
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse("ok")
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "ok", *resp.Result)
	assert.Nil(t, resp.Error)
}

func TestNewErrorResponse_PlainError(t *testing.T) {
	resp := NewErrorResponse(errors.New("not found"))
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not found", *resp.Error)
	assert.Equal(t, sovereignerr.ErrCodeInternal, resp.Code)
}

func TestNewErrorResponse_SovereignError_CarriesCode(t *testing.T) {
	resp := NewErrorResponse(sovereignerr.NotFoundError("memory xyz not found", nil))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, sovereignerr.ErrCodeFileNotFound, resp.Code)
}

func TestResponse_RoundTrip(t *testing.T) {
	resp := NewSuccessResponse("42 files indexed")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, resp, decoded)
}

func TestChunkMessage_EmptyStringYieldsOneEmptyChunk(t *testing.T) {
	chunks := ChunkMessage("")
	assert.Equal(t, []string{""}, chunks)
}

func TestChunkMessage_ShortStringYieldsOneChunk(t *testing.T) {
	chunks := ChunkMessage("hello world")
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkMessage_LongStringSplitsAtBoundary(t *testing.T) {
	s := strings.Repeat("a", 250)
	chunks := ChunkMessage(s)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], WSChunkSize)
	assert.Len(t, chunks[1], WSChunkSize)
	assert.Len(t, chunks[2], 50)

	joined := strings.Join(chunks, "")
	assert.Equal(t, s, joined)
}

func TestChunkMessage_NeverSplitsMultiByteRunes(t *testing.T) {
	// Each "é" is 2 bytes; build a string that would straddle the 100-byte
	// boundary if split byte-wise instead of rune-wise.
	s := strings.Repeat("é", 60) // 120 bytes
	chunks := ChunkMessage(s)

	for _, c := range chunks {
		assert.True(t, len(c) <= WSChunkSize)
		for _, r := range c {
			assert.NotEqual(t, rune(0xFFFD), r, "chunk must not contain a corrupted rune")
		}
	}

	joined := strings.Join(chunks, "")
	assert.Equal(t, s, joined)
}

func TestWSRequest_MarshalsOptionalArgs(t *testing.T) {
	req := WSRequest{ID: "1", Command: "/search"}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","command":"/search"}`, string(data))
}

func TestWSResponse_ChunkEvent(t *testing.T) {
	data := "partial result"
	resp := WSResponse{ID: "1", Event: WSEventChunk, Data: &data}
	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","event":"chunk","data":"partial result"}`, string(encoded))
}

func TestWSResponse_CompleteEventOmitsData(t *testing.T) {
	resp := WSResponse{ID: "1", Event: WSEventComplete}
	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","event":"complete"}`, string(encoded))
}
