package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/chess"
	"github.com/tecu23/duel-server/pkg/messages"
)

func pipeClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})

	return NewClient(local, clockwork.NewFakeClockAt(epoch), zap.NewNop()), remote
}

func TestClient_Send(t *testing.T) {
	c, remote := pipeClient(t)
	lines := make(chan []byte, 2)
	go func() {
		scanner := messages.NewScanner(remote)
		for {
			line, err := scanner.Next()
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	require.NoError(t, c.SendReady())
	require.NoError(t, c.SendMove(chess.Square{6, 4}, chess.Square{4, 4}, ""))

	ready, err := messages.DecodeInbound(<-lines)
	require.NoError(t, err)
	assert.Equal(t, messages.Ready{}, ready)

	move, err := messages.DecodeInbound(<-lines)
	require.NoError(t, err)
	assert.Equal(t, messages.Move{
		From:      chess.Square{6, 4},
		To:        chess.Square{4, 4},
		Timestamp: messages.Timestamp(epoch),
	}, move)
}

func TestClient_Listen(t *testing.T) {
	t.Run("delivers records and skips garbage", func(t *testing.T) {
		c, remote := pipeClient(t)

		var got []messages.Outbound
		done := make(chan error, 1)
		go func() {
			done <- c.Listen(context.Background(), func(msg messages.Outbound) { got = append(got, msg) })
		}()

		require.NoError(t, messages.Write(remote, messages.JoinAccepted{Color: chess.White}))
		_, err := remote.Write([]byte("garbage\n\n"))
		require.NoError(t, err)
		require.NoError(t, messages.Write(remote, messages.GameOver{Reason: "Opponent disconnected", Result: "1-0"}))
		remote.Close()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Listen did not return")
		}

		assert.Equal(t, []messages.Outbound{
			messages.JoinAccepted{Color: chess.White},
			messages.GameOver{Reason: "Opponent disconnected", Result: "1-0"},
		}, got)
	})

	t.Run("returns when the context is cancelled", func(t *testing.T) {
		c, _ := pipeClient(t)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- c.Listen(ctx, func(messages.Outbound) {}) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Listen did not return")
		}
	})
}
