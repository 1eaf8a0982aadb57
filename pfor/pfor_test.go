package pfor

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOrdered(t *testing.T, numThreads, n int) string {
	t.Helper()
	var out bytes.Buffer
	crt := 0
	err := ParFor(
		numThreads, 10,
		func() (int, bool) {
			if crt >= n {
				return 0, false
			}
			crt++
			return crt - 1, true
		},
		func(i int, buf *bytes.Buffer) error {
			// uneven processing time stresses the reorder window
			time.Sleep(time.Duration(i%7) * time.Millisecond)
			fmt.Fprintf(buf, "item %d\n", i)
			return nil
		},
		func(buf *bytes.Buffer) error {
			_, err := out.Write(buf.Bytes())
			return err
		},
		nil,
	)
	require.NoError(t, err)
	return out.String()
}

func TestOutputOrder(t *testing.T) {
	want := runOrdered(t, 1, 50)
	for _, threads := range []int{2, 4, 8} {
		assert.Equal(t, want, runOrdered(t, threads, 50))
	}
}

func TestFirstErrorStopsPool(t *testing.T) {
	boom := errors.New("boom")
	var pulled atomic.Int64
	crt := 0
	err := ParFor(
		4, 5,
		func() (int, bool) {
			if crt >= 1000 {
				return 0, false
			}
			crt++
			pulled.Add(1)
			return crt - 1, true
		},
		func(i int, buf *bytes.Buffer) error {
			if i == 3 {
				return boom
			}
			return nil
		},
		func(buf *bytes.Buffer) error { return nil },
		nil,
	)
	assert.ErrorIs(t, err, boom)
	// the pull loop stopped early instead of draining all 1000 items
	assert.Less(t, int(pulled.Load()), 1000)
}

func TestOutputErrorSurfaces(t *testing.T) {
	boom := errors.New("sink closed")
	crt := 0
	err := ParFor(
		2, 4,
		func() (int, bool) {
			if crt >= 20 {
				return 0, false
			}
			crt++
			return crt - 1, true
		},
		func(i int, buf *bytes.Buffer) error {
			fmt.Fprintf(buf, "%d", i)
			return nil
		},
		func(buf *bytes.Buffer) error { return boom },
		nil,
	)
	assert.ErrorIs(t, err, boom)
}

func TestProgressReported(t *testing.T) {
	var calls atomic.Int64
	var last atomic.Int64
	crt := 0
	err := ParFor(
		2, 4,
		func() (int, bool) {
			if crt >= 10 {
				return 0, false
			}
			crt++
			return crt - 1, true
		},
		func(i int, buf *bytes.Buffer) error { return nil },
		func(buf *bytes.Buffer) error { return nil },
		func(items int, elapsed time.Duration) {
			calls.Add(1)
			last.Store(int64(items))
		},
	)
	require.NoError(t, err)
	// the final report covers every item
	assert.GreaterOrEqual(t, calls.Load(), int64(1))
	assert.Equal(t, int64(10), last.Load())
}

func TestEmptySource(t *testing.T) {
	err := ParFor(
		3, 4,
		func() (int, bool) { return 0, false },
		func(i int, buf *bytes.Buffer) error { return nil },
		func(buf *bytes.Buffer) error { return nil },
		nil,
	)
	require.NoError(t, err)
}
