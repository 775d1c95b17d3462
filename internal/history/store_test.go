package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msg(room string, i int) Message {
	return Message{
		RoomID:    room,
		Sender:    "0xAAA",
		Content:   fmt.Sprintf("bid %d", i),
		Timestamp: fmt.Sprintf("2024-01-01T00:00:%02dZ", i%60),
	}
}

// TestNewStoreLimit verifies the default cap is applied for non-positive limits.
func TestNewStoreLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NewStore(0).Limit())
	assert.Equal(t, DefaultLimit, NewStore(-3).Limit())
	assert.Equal(t, 5, NewStore(5).Limit())
}

// TestSnapshotLengthAndOrder checks that after N appends a room holds
// min(N, limit) messages in insertion order.
func TestSnapshotLengthAndOrder(t *testing.T) {
	for _, n := range []int{0, 1, 50, 99, 100, 101, 250} {
		t.Run(fmt.Sprintf("%d appends", n), func(t *testing.T) {
			s := NewStore(0)
			for i := 0; i < n; i++ {
				s.Append("7", msg("7", i))
			}

			snap := s.Snapshot("7")
			want := n
			if want > DefaultLimit {
				want = DefaultLimit
			}
			require.Len(t, snap, want)

			first := n - want
			for i, m := range snap {
				assert.Equal(t, fmt.Sprintf("bid %d", first+i), m.Content)
			}
		})
	}
}

// TestAppendEvictsOldest verifies the 101st message pushes out exactly the first.
func TestAppendEvictsOldest(t *testing.T) {
	s := NewStore(0)
	for i := 1; i <= 100; i++ {
		s.Append("7", msg("7", i))
	}
	require.Equal(t, 100, s.Len("7"))
	require.Equal(t, "bid 1", s.Snapshot("7")[0].Content)

	s.Append("7", msg("7", 101))

	snap := s.Snapshot("7")
	require.Len(t, snap, 100)
	assert.Equal(t, "bid 2", snap[0].Content)
	assert.Equal(t, "bid 101", snap[99].Content)
}

func TestGetOrCreate(t *testing.T) {
	s := NewStore(0)

	assert.Equal(t, 0, s.Rooms())
	got := s.GetOrCreate("9")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, s.Rooms())

	s.Append("9", msg("9", 1))
	got = s.GetOrCreate("9")
	require.Len(t, got, 1)
	assert.Equal(t, 1, s.Rooms())
}

// TestSnapshotUnknownRoom ensures reading does not create a room.
func TestSnapshotUnknownRoom(t *testing.T) {
	s := NewStore(0)

	snap := s.Snapshot("missing")
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
	assert.Equal(t, 0, s.Rooms())
}

// TestRoomsAreIndependent checks that appends never leak across rooms.
func TestRoomsAreIndependent(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Append("a", msg("a", i))
	}
	s.Append("b", msg("b", 0))

	assert.Equal(t, 3, s.Len("a"))
	assert.Equal(t, 1, s.Len("b"))
	assert.Equal(t, "b", s.Snapshot("b")[0].RoomID)
}

// TestSnapshotIsDetached verifies later appends do not show through an
// earlier snapshot and that callers cannot mutate stored history.
func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore(2)
	s.Append("7", msg("7", 1))
	s.Append("7", msg("7", 2))

	snap := s.Snapshot("7")
	s.Append("7", msg("7", 3))
	assert.Equal(t, "bid 1", snap[0].Content)
	assert.Equal(t, "bid 2", snap[1].Content)

	snap[0].Content = "tampered"
	assert.Equal(t, "bid 2", s.Snapshot("7")[0].Content)
}

// TestConcurrentAppendAndSnapshot hammers a room from several goroutines;
// every snapshot must be within the limit and strictly ordered per writer.
func TestConcurrentAppendAndSnapshot(t *testing.T) {
	const (
		writers   = 8
		perWriter = 200
	)
	s := NewStore(0)

	var wg sync.WaitGroup
	wg.Add(writers + 1)

	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append("hot", Message{
					RoomID:  "hot",
					Sender:  fmt.Sprintf("writer-%d", w),
					Content: fmt.Sprintf("%06d", i),
				})
			}
		}(w)
	}

	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			snap := s.Snapshot("hot")
			if len(snap) > DefaultLimit {
				t.Errorf("snapshot exceeded limit: %d", len(snap))
				return
			}
			last := make(map[string]string)
			for _, m := range snap {
				if prev, ok := last[m.Sender]; ok && m.Content <= prev {
					t.Errorf("out of order for %s: %s after %s", m.Sender, m.Content, prev)
					return
				}
				last[m.Sender] = m.Content
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, DefaultLimit, s.Len("hot"))
}
