package ledger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

type fakeHID struct {
	written [][]byte
	reports bytes.Buffer
	closed  bool
}

func (f *fakeHID) Write(p []byte) (int, error) {
	f.written = append(f.written, bytes.Clone(p))
	return len(p), nil
}

func (f *fakeHID) Read(p []byte) (int, error) {
	return f.reports.Read(p)
}

func (f *fakeHID) Close() error {
	f.closed = true
	return nil
}

// queueReply frames reply the way the device streams it back.
func (f *fakeHID) queueReply(reply []byte) {
	message := append([]byte{byte(len(reply) >> 8), byte(len(reply))}, reply...)

	for seq := 0; len(message) > 0; seq++ {
		report := make([]byte, 64)
		copy(report, []byte{0x01, 0x01, 0x05, byte(seq >> 8), byte(seq)})
		n := copy(report[5:], message)
		message = message[n:]
		f.reports.Write(report)
	}
}

func TestHIDExchangeFraming(t *testing.T) {
	dev := &fakeHID{}
	transport := ledger.NewHIDTransport(dev, "test")

	apdu := append([]byte{0xe0, 0x04, 0x00, 0x00, 0x96}, bytes.Repeat([]byte{0xaa}, 150)...)
	reply := append(bytes.Repeat([]byte{0xbb}, 65), 0x90, 0x00)
	dev.queueReply(reply)

	got, err := transport.Exchange(t.Context(), apdu)
	require.NoError(t, err)
	assert.Equal(t, reply, got)

	// 2 length bytes + 155 APDU bytes over 59 byte payloads
	require.Len(t, dev.written, 3)
	for seq, report := range dev.written {
		require.Len(t, report, 64)
		assert.Equal(t, []byte{0x01, 0x01, 0x05, 0x00, byte(seq)}, report[:5])
	}
	assert.Equal(t, []byte{0x00, 0x9b, 0xe0, 0x04}, dev.written[0][5:9])

	var sent []byte
	for _, report := range dev.written {
		sent = append(sent, report[5:]...)
	}
	assert.Equal(t, apdu, sent[2:2+len(apdu)])

	require.NoError(t, transport.Close())
	assert.True(t, dev.closed)
}

func TestHIDExchangeShortReply(t *testing.T) {
	dev := &fakeHID{}
	transport := ledger.NewHIDTransport(dev, "test")

	dev.queueReply([]byte{0x69, 0x85})

	got, err := transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x69, 0x85}, got)
}

func TestHIDExchangeInvalidHeader(t *testing.T) {
	dev := &fakeHID{}
	transport := ledger.NewHIDTransport(dev, "test")

	report := make([]byte, 64)
	copy(report, []byte{0x02, 0x02, 0x05, 0x00, 0x00, 0x00, 0x02, 0x90, 0x00})
	dev.reports.Write(report)

	_, err := transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestHIDExchangeTruncatedReply(t *testing.T) {
	dev := &fakeHID{}
	transport := ledger.NewHIDTransport(dev, "test")

	report := make([]byte, 64)
	copy(report, []byte{0x01, 0x01, 0x05, 0x00, 0x00, 0x01, 0x00})
	dev.reports.Write(report)

	_, err := transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestHIDExchangeCancelled(t *testing.T) {
	dev := &fakeHID{}
	transport := ledger.NewHIDTransport(dev, "test")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := transport.Exchange(ctx, []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.written)
}
