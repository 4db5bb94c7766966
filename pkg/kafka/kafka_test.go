package kafka_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/kafka"
)

type job struct {
	ID         string `json:"id"`
	Iterations int    `json:"iterations"`
}

func TestEncodeAndDecode(t *testing.T) {
	msg, err := kafka.Encode(kafka.Event{Key: "digest", Value: job{ID: "j1", Iterations: 5}})
	require.NoError(t, err)
	assert.Equal(t, "digest", string(msg.Key))
	assert.JSONEq(t, `{"id":"j1","iterations":5}`, string(msg.Value))

	got, err := kafka.DecodeJSON[job](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, job{ID: "j1", Iterations: 5}, got)
}

func TestEncode_Unmarshalable(t *testing.T) {
	_, err := kafka.Encode(kafka.Event{Key: "k", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	_, err := kafka.DecodeJSON[job]([]byte("{not json"))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestPing_NoBrokers(t *testing.T) {
	assert.ErrorContains(t, kafka.Ping(context.Background(), nil), "no kafka brokers")
}
