package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := Wrap(zerolog.New(&buf))

	l.Info("download complete", "bytes", 9, "endpoint", "coap://a.b.c:5683/fw")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "download complete", entry["message"])
	assert.Equal(t, float64(9), entry["bytes"])
	assert.Equal(t, "coap://a.b.c:5683/fw", entry["endpoint"])
}

func TestWithAddsContext(t *testing.T) {
	var buf bytes.Buffer
	l := With(Wrap(zerolog.New(&buf)), "cycle_id", "abc")

	l.Error("failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["cycle_id"])
}

type recorder struct {
	kv []interface{}
}

func (r *recorder) Debug(_ string, kv ...interface{}) { r.kv = kv }
func (r *recorder) Info(_ string, kv ...interface{})  { r.kv = kv }
func (r *recorder) Error(_ string, kv ...interface{}) { r.kv = kv }

func TestWithForeignLogger(t *testing.T) {
	rec := &recorder{}
	With(rec, "a", 1).Debug("msg", "b", 2)
	assert.Equal(t, []interface{}{"a", 1, "b", 2}, rec.kv)
}

func TestNewLevels(t *testing.T) {
	zl, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, zl.GetLevel())

	zl, err = New(Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zl.GetLevel())

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	fallback := &recorder{}
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	rec := &recorder{}
	ctx := NewContext(context.Background(), With(rec, "cycle_id", "abc"))
	FromContext(ctx, fallback).Info("msg", "k", "v")
	assert.Equal(t, []interface{}{"cycle_id", "abc", "k", "v"}, rec.kv)
	assert.Nil(t, fallback.kv)
}
