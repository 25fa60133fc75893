package rgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rgraph/transport"
)

func captureLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelByError(t *testing.T) {
	l, buf := captureLogger(slog.LevelInfo)
	ctx := t.Context()

	l.LogLoad(ctx, 3, 4, time.Second, nil)
	l.LogLoad(ctx, 3, 4, time.Second, errors.New("boom"))
	// Successful lookups log at debug and are filtered here.
	l.LogLookup(ctx, LookupVertex, 1, nil)
	l.LogSnapshot(ctx, "img", 2<<20, nil)
	l.LogPublish(ctx, "g", ErrAlreadyPublished)
	l.LogConnect(ctx, transport.Node{Host: "mem", Port: 1}, 2, nil)

	recs := records(t, buf)
	require.Len(t, recs, 5)
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "ERROR", recs[1]["level"])
	assert.Equal(t, "boom", recs[1]["error"])
	assert.Equal(t, "2.0 MiB", recs[2]["size"])
	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.Equal(t, "mem:1", recs[4]["node"])
}

func TestLogger_Fields(t *testing.T) {
	l, buf := captureLogger(slog.LevelDebug)
	l.WithVertex(7).WithCount(3).WithNode(transport.Node{Host: "h", Port: 2}).Info("x")

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, float64(7), recs[0]["vertex"])
	assert.Equal(t, float64(3), recs[0]["count"])
	assert.Equal(t, "h:2", recs[0]["node"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	l.Error("discarded")
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
}
