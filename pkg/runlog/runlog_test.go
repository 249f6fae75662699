package runlog

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLog(t *testing.T) (*RunLog, *storage.FileProvider) {
	t.Helper()
	p := storage.NewFileProvider(filepath.Join(t.TempDir(), "outputs"))
	require.NoError(t, p.Initialize())
	clock := &fixedClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := New(p.GetLogStore(), logging.NewNop(), WithClock(clock.now))
	require.NoError(t, l.Init())
	return l, p
}

func TestInit_WritesIdleOnce(t *testing.T) {
	l, _ := newTestLog(t)

	status := l.CurrentStatus()
	assert.False(t, status.Active())
	assert.Equal(t, models.StatusIdle, status.CurrentStatus)
	assert.Nil(t, status.StartedAt)

	l.SetCurrentAgent("planner", "planner working...")
	require.NoError(t, l.Init())
	assert.True(t, l.CurrentStatus().Active())
}

func TestSetCurrentAgentAndComplete(t *testing.T) {
	l, _ := newTestLog(t)

	l.SetCurrentAgent("planner", "planner working...")
	status := l.CurrentStatus()
	require.True(t, status.Active())
	assert.Equal(t, "planner", status.Agent())
	assert.Equal(t, "planner working...", status.CurrentStatus)
	require.NotNil(t, status.StartedAt)

	l.CompleteAgent("planner")
	status = l.CurrentStatus()
	assert.False(t, status.Active())
	assert.Nil(t, status.StartedAt)
	assert.Equal(t, models.StatusIdle, status.CurrentStatus)

	entries := l.Tail(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "planner started", entries[0].Message)
	assert.Equal(t, models.LevelInfo, entries[0].Level)
	assert.Equal(t, "planner completed", entries[1].Message)
}

func TestAppend_BumpsLastUpdateWithoutChangingAgent(t *testing.T) {
	l, _ := newTestLog(t)

	l.SetCurrentAgent("copywriter", "copywriter working...")
	before := l.CurrentStatus()

	l.Log("copywriter", models.LevelThinking, "task received", nil)
	after := l.CurrentStatus()

	assert.True(t, after.LastUpdate.After(before.LastUpdate))
	assert.Equal(t, "copywriter", after.Agent())
	assert.Equal(t, before.StartedAt, after.StartedAt)
}

func TestTail(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 7; i++ {
		l.Log("x", models.LevelInfo, fmt.Sprintf("m%d", i), nil)
	}

	for _, limit := range []int{0, -1, 1, 3, 7, 100} {
		got := l.Tail(limit)
		want := limit
		if want < 0 {
			want = 0
		}
		if want > 7 {
			want = 7
		}
		require.Len(t, got, want, "limit %d", limit)
		for i, e := range got {
			assert.Equal(t, fmt.Sprintf("m%d", 7-want+i), e.Message)
		}
	}
}

func TestRunIDStamped(t *testing.T) {
	l, _ := newTestLog(t)
	l.SetRunID("run-1")

	l.SetCurrentAgent("planner", "planner working...")
	assert.Equal(t, "run-1", l.CurrentStatus().RunID)

	l.Log("planner", models.LevelAction, "calling model", map[string]interface{}{"k": "v"})
	entries := l.Tail(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].Data["run_id"])
	assert.Equal(t, "v", entries[0].Data["k"])
}

func TestClear(t *testing.T) {
	l, _ := newTestLog(t)
	l.SetCurrentAgent("planner", "planner working...")
	l.Log("planner", models.LevelOutput, "output saved", nil)

	require.NoError(t, l.Clear())
	assert.Empty(t, l.Tail(100))
	assert.False(t, l.CurrentStatus().Active())
}

type mockLogStore struct {
	mock.Mock
}

func (m *mockLogStore) AppendEntry(entry models.LogEntry) error {
	return m.Called(entry).Error(0)
}

func (m *mockLogStore) ReadEntries(limit int) ([]models.LogEntry, error) {
	args := m.Called(limit)
	entries, _ := args.Get(0).([]models.LogEntry)
	return entries, args.Error(1)
}

func (m *mockLogStore) WriteStatus(status models.RunStatus) error {
	return m.Called(status).Error(0)
}

func (m *mockLogStore) ReadStatus() (models.RunStatus, bool, error) {
	args := m.Called()
	return args.Get(0).(models.RunStatus), args.Bool(1), args.Error(2)
}

func (m *mockLogStore) Truncate() error {
	return m.Called().Error(0)
}

func TestWriteFailuresAreSwallowed(t *testing.T) {
	store := new(mockLogStore)
	diskFull := errors.New("disk full")
	store.On("AppendEntry", mock.Anything).Return(diskFull)
	store.On("WriteStatus", mock.Anything).Return(diskFull)
	store.On("ReadStatus").Return(models.RunStatus{}, false, diskFull)
	store.On("ReadEntries", 5).Return(nil, diskFull)

	var buf bytes.Buffer
	l := New(store, logging.NewWithWriter(&buf, logging.LogConfig{Level: "debug", Format: "json"}))

	assert.NotPanics(t, func() {
		l.SetCurrentAgent("planner", "planner working...")
		l.Log("planner", models.LevelThinking, "task received", nil)
		l.CompleteAgent("planner")
	})
	assert.Empty(t, l.Tail(5))
	assert.False(t, l.CurrentStatus().Active())
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), "Failed to append run log entry")
}

func TestCrossReaderSeesPersistedState(t *testing.T) {
	l, p := newTestLog(t)
	reader := New(p.GetLogStore(), logging.NewNop())

	l.SetCurrentAgent("reviewer", "reviewer working...")
	assert.Equal(t, "reviewer", reader.CurrentStatus().Agent())
	assert.Len(t, reader.Tail(10), 1)
}
