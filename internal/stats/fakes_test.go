package stats

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/helpyt/internal/db"
)

var errConnectionLost = errors.New("connection lost")

type snapshotKey struct {
	channelID string
	period    string
	start     int64
}

// memoryStore 是 ChannelStore、ClickLog、HistoryStore 的内存实现。
type memoryStore struct {
	mu       sync.Mutex
	channels map[string]*db.Channel
	clicks   map[string][]time.Time
	history  map[snapshotKey]db.ChannelHistory

	failGet    map[string]error
	failList   error
	failCount  error
	failUpsert error
	upserts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		channels: map[string]*db.Channel{},
		clicks:   map[string][]time.Time{},
		history:  map[snapshotKey]db.ChannelHistory{},
		failGet:  map[string]error{},
	}
}

func (m *memoryStore) addChannel(id string, subscribers int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[id] = &db.Channel{ID: id, ChannelName: id, SubscriptionCount: subscribers}
}

func (m *memoryStore) setSubscribers(id string, subscribers int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[id].SubscriptionCount = subscribers
}

func (m *memoryStore) click(id string, at ...time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[id] = append(m.clicks[id], at...)
}

func (m *memoryStore) snapshots() []db.ChannelHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.ChannelHistory, 0, len(m.history))
	for _, h := range m.history {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (m *memoryStore) GetChannel(_ context.Context, id string) (*db.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGet[id]; err != nil {
		return nil, err
	}
	ch, ok := m.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	copied := *ch
	return &copied, nil
}

func (m *memoryStore) ListChannelIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	ids := make([]string, 0, len(m.channels)+len(m.failGet))
	for id := range m.channels {
		ids = append(ids, id)
	}
	for id := range m.failGet {
		if _, ok := m.channels[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) CountClicks(_ context.Context, channelID string, start, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount != nil {
		return 0, m.failCount
	}
	var n int64
	for _, at := range m.clicks[channelID] {
		if !at.Before(start) && !at.After(end) {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) FindSnapshot(_ context.Context, channelID string, period Period, start time.Time) (*db.ChannelHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[snapshotKey{channelID, period.String(), start.UnixNano()}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (m *memoryStore) UpsertSnapshot(_ context.Context, snapshot *db.ChannelHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.upserts++

	key := snapshotKey{snapshot.ChannelID, snapshot.Period, snapshot.StartDate.UnixNano()}
	now := time.Now().UTC()
	stored, ok := m.history[key]
	if !ok {
		stored = db.ChannelHistory{
			ID:        uuid.NewString(),
			ChannelID: snapshot.ChannelID,
			Period:    snapshot.Period,
			StartDate: snapshot.StartDate,
			CreatedAt: now,
		}
	}
	stored.EndDate = snapshot.EndDate
	stored.SubscriptionCount = snapshot.SubscriptionCount
	stored.ClickCount = snapshot.ClickCount
	stored.SubscriptionGrowth = snapshot.SubscriptionGrowth
	stored.ClickGrowth = snapshot.ClickGrowth
	stored.UpdatedAt = now
	m.history[key] = stored

	*snapshot = stored
	return nil
}

func newTestEngine(store *memoryStore, now time.Time, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewEngine(store, store, store, opts...)
}
