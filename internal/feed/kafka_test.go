package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSinkKeysByGame(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	first := sampleEvent()
	second := sampleEvent()
	second.GameID = "7"
	second.Kind = domain.EventGameEnded
	require.NoError(t, sink.Publish(context.Background(), first, second))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "1", string(w.msgs[0].Key))
	assert.Equal(t, "7", string(w.msgs[1].Key))
	assert.Equal(t, []kafka.Header{{Key: "kind", Value: []byte("game_ended")}}, w.msgs[1].Headers)

	got, err := Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, first.Amount, got.Amount)
	assert.Equal(t, first.Account, got.Account)
}

func TestKafkaSinkRequiresTopic(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

type recordingPublisher struct {
	got []domain.LedgerEvent
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, events ...domain.LedgerEvent) error {
	r.got = append(r.got, events...)
	return r.err
}

func TestFanoutReachesEveryPublisher(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingPublisher{err: boom}
	b := &recordingPublisher{}

	err := Fanout{a, b}.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
