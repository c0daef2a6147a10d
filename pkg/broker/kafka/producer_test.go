package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestProducer_Publish(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)

	var got *sarama.ProducerMessage
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		got = msg
		return nil
	})

	p := NewProducerFrom(sp)
	err := p.Publish(context.Background(), "reports", "msg-1", []byte(`{"a":1}`), map[string]string{"event": "message.reported"})
	require.NoError(t, err)

	require.Equal(t, "reports", got.Topic)
	key, err := got.Key.Encode()
	require.NoError(t, err)
	require.Equal(t, "msg-1", string(key))
	value, err := got.Value.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(value))
	require.Len(t, got.Headers, 1)
	require.Equal(t, "event", string(got.Headers[0].Key))

	require.NoError(t, p.Close())
}

func TestProducer_PublishError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp)
	err := p.Publish(context.Background(), "reports", "k", nil, nil)

	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducer_PublishCanceled(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(sp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, "reports", "k", nil, nil)
	require.True(t, errors.Is(err, context.Canceled))
	require.NoError(t, p.Close())
}

func TestProducer_CloseWithoutSync(t *testing.T) {
	require.NoError(t, (&Producer{}).Close())
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(nil, nil)
	require.Error(t, err)
}
