package registry

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/testutil"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	r := New(quiet())
	const workers, per = 20, 50

	testutil.RunConcurrently(workers, func(w int) {
		for i := 0; i < per; i++ {
			assert.NoError(t, r.Add(fmt.Sprintf("10.0.%d.%d:80", w, i)))
		}
	})

	assert.Equal(t, workers*per, r.Len())
	assert.Len(t, r.Unique(), workers*per)
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	r := New(quiet())
	require.NoError(t, r.Add("10.0.0.1:80"))

	snap := r.Snapshot()
	snap[0] = "mutated"
	assert.Equal(t, []string{"10.0.0.1:80"}, r.Snapshot())
}

func TestRegistry_UniqueSortsAndDedups(t *testing.T) {
	t.Parallel()

	r := New(quiet())
	for _, e := range []string{"10.0.0.2:80", "10.0.0.1:8080", "10.0.0.2:80"} {
		require.NoError(t, r.Add(e))
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"10.0.0.2:80", "10.0.0.1:8080", "10.0.0.2:80"}, r.Snapshot())
	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:80"}, r.Unique())
}

func TestRegistry_Freeze(t *testing.T) {
	t.Parallel()

	r := New(quiet())
	require.NoError(t, r.Add("10.0.0.1:80"))
	r.Freeze()
	r.Freeze()

	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Add("10.0.0.9:80"), ErrFrozen)
	assert.Equal(t, []string{"10.0.0.1:80"}, r.Snapshot())
}

func TestRegistry_Empty(t *testing.T) {
	t.Parallel()

	r := New()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Unique())
}
