package snapshots

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var captured = time.Date(2026, 10, 15, 9, 30, 5, 0, time.Local)

func TestFilename(t *testing.T) {
	require.Equal(t, "response_20261015_093005_req42_http503.html", Filename(Snapshot{
		Kind:       KindResponse,
		Sequence:   42,
		StatusCode: 503,
		Time:       captured,
	}))
	require.Equal(t, "cart_add_20261015_093005_req7.txt", Filename(Snapshot{
		Kind:     KindReservation,
		Sequence: 7,
		Time:     captured,
	}))
}

func TestFilesystemSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "responses")
	sink, err := NewFilesystemSink(dir)
	require.NoError(t, err)

	snapshot := Snapshot{Kind: KindResponse, Sequence: 1, StatusCode: 200, Body: []byte("<html/>"), Time: captured}
	require.NoError(t, sink.Save(context.Background(), snapshot))

	body, err := os.ReadFile(filepath.Join(dir, Filename(snapshot)))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(body))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	runID := uuid.NewString()
	other := uuid.NewString()
	saved := []Snapshot{
		{RunID: runID, Sequence: 3, Kind: KindResponse, StatusCode: 429, URL: "https://a.example/event/secondhand/", Body: []byte("slow down"), Time: captured},
		{RunID: runID, Sequence: 9, Kind: KindReservation, StatusCode: 200, URL: "https://a.example/event/cart/add", Body: []byte("dump"), Time: captured.Add(time.Minute)},
	}
	for _, s := range saved {
		require.NoError(t, store.Save(ctx, s))
	}
	require.NoError(t, store.Save(ctx, Snapshot{RunID: other, Sequence: 1, Kind: KindResponse, Body: []byte("x"), Time: captured.Add(time.Hour)}))

	listed, err := store.List(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(saved, listed, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("snapshots differ (-saved +listed):\n%s", diff)
	}

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, other, runs[0].ID)
	require.Equal(t, int64(2), runs[1].Snapshots)
}

func TestOpenStoreRequiresDSN(t *testing.T) {
	_, err := OpenStore(context.Background(), "")
	require.Error(t, err)
}

type failingSink struct{ err error }

func (f failingSink) Save(context.Context, Snapshot) error { return f.err }

type countingSink struct{ saved []Snapshot }

func (c *countingSink) Save(_ context.Context, s Snapshot) error {
	c.saved = append(c.saved, s)
	return nil
}

func TestMulti(t *testing.T) {
	require.Equal(t, Discard, Multi(nil, nil))

	counter := &countingSink{}
	require.Same(t, counter, Multi(nil, counter))

	boom := errors.New("disk full")
	second := &countingSink{}
	sink := Multi(failingSink{err: boom}, second)
	err := sink.Save(context.Background(), Snapshot{Sequence: 1})
	require.ErrorIs(t, err, boom)
	require.Len(t, second.saved, 1)
}
