package device_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/wallet/device"
)

type nopTransport struct {
	closed atomic.Bool
}

func (n *nopTransport) Exchange(context.Context, []byte) ([]byte, error) {
	return []byte{0x90, 0x00}, nil
}

func (n *nopTransport) Close() error {
	n.closed.Store(true)
	return nil
}

func TestTransportPromiseResolvesOnce(t *testing.T) {
	var calls atomic.Int32
	transport := &nopTransport{}

	promise := device.NewTransportPromise(func(context.Context) (device.Transport, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return transport, nil
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := promise.Await(t.Context())
			assert.NoError(t, err)
			assert.Same(t, transport, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, promise.Close())
	assert.True(t, transport.closed.Load())
}

func TestTransportPromiseRetriesAfterFailure(t *testing.T) {
	errNoDevice := errors.New("no device plugged in")
	transport := &nopTransport{}
	var calls atomic.Int32

	promise := device.NewTransportPromise(func(context.Context) (device.Transport, error) {
		if calls.Add(1) == 1 {
			return nil, errNoDevice
		}
		return transport, nil
	})

	_, err := promise.Await(t.Context())
	require.ErrorIs(t, err, errNoDevice)

	// device plugged in afterwards
	got, err := promise.Await(t.Context())
	require.NoError(t, err)
	assert.Same(t, transport, got)

	got, err = promise.Await(t.Context())
	require.NoError(t, err)
	assert.Same(t, transport, got)

	assert.Equal(t, int32(2), calls.Load())
	require.NoError(t, promise.Close())
	assert.True(t, transport.closed.Load())
}

func TestTransportPromiseSingleResolutionWhilePending(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	promise := device.NewTransportPromise(func(context.Context) (device.Transport, error) {
		calls.Add(1)
		<-release
		return &nopTransport{}, nil
	})

	for range 20 {
		ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
		_, err := promise.Await(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	close(release)

	_, err := promise.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, promise.Close())
}

func TestTransportPromiseClosedWhilePending(t *testing.T) {
	release := make(chan struct{})
	transport := &nopTransport{}

	promise := device.NewTransportPromise(func(context.Context) (device.Transport, error) {
		<-release
		return transport, nil
	})

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()
	_, err := promise.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, promise.Close())
	close(release)

	require.Eventually(t, transport.closed.Load, time.Second, time.Millisecond)

	_, err = promise.Await(t.Context())
	require.ErrorIs(t, err, device.ErrPromiseClosed)
}

func TestTransportPromiseAwaitCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	promise := device.NewTransportPromise(func(context.Context) (device.Transport, error) {
		<-release
		return &nopTransport{}, nil
	})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := promise.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// not resolved yet, nothing to close
	require.NoError(t, promise.Close())
}

func TestResolvedTransport(t *testing.T) {
	transport := &nopTransport{}
	promise := device.ResolvedTransport(transport)

	got, err := promise.Await(t.Context())
	require.NoError(t, err)
	assert.Same(t, transport, got)
}
