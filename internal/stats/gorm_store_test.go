package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/helpyt/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupGormStore(t *testing.T) (*gorm.DB, *GormStore) {
	t.Helper()

	dsn := fmt.Sprintf("file:stats-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: db.NowUTC, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb, NewGormStore(gdb)
}

func seedChannel(t *testing.T, gdb *gorm.DB, name string, subscribers int64) db.Channel {
	t.Helper()
	ch := db.Channel{ChannelLink: "https://example.com/" + name, ChannelName: name, SubscriptionCount: subscribers, CreatedBy: 1}
	require.NoError(t, gdb.Create(&ch).Error)
	return ch
}

func TestGormStoreUpsertKeepsSingleRow(t *testing.T) {
	gdb, store := setupGormStore(t)
	ch := seedChannel(t, gdb, "a", 10)
	ctx := context.Background()
	start := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 18, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	first := &db.ChannelHistory{ChannelID: ch.ID, Period: "weekly", StartDate: start, EndDate: end, SubscriptionCount: 10, ClickCount: 1}
	require.NoError(t, store.UpsertSnapshot(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &db.ChannelHistory{ChannelID: ch.ID, Period: "weekly", StartDate: start, EndDate: end, SubscriptionCount: 12, ClickCount: 4, ClickGrowth: 4}
	require.NoError(t, store.UpsertSnapshot(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 12, second.SubscriptionCount)
	assert.EqualValues(t, 4, second.ClickGrowth)

	var count int64
	require.NoError(t, gdb.Model(&db.ChannelHistory{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	found, err := store.FindSnapshot(ctx, ch.ID, PeriodWeekly, start)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.EqualValues(t, 4, found.ClickCount)

	missing, err := store.FindSnapshot(ctx, ch.ID, PeriodMonthly, start)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormStoreCountClicksInclusive(t *testing.T) {
	gdb, store := setupGormStore(t)
	ch := seedChannel(t, gdb, "a", 0)
	start := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 18, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	for i, at := range []time.Time{start, end, start.Add(-time.Second), end.Add(time.Millisecond), start.Add(36 * time.Hour)} {
		click := db.ChannelClick{ChannelID: ch.ID, UserID: uint(i + 1), ClickedAt: at}
		require.NoError(t, gdb.Create(&click).Error)
	}

	n, err := store.CountClicks(context.Background(), ch.ID, start, end)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestGormStoreChannelLookups(t *testing.T) {
	gdb, store := setupGormStore(t)
	a := seedChannel(t, gdb, "a", 0)
	b := seedChannel(t, gdb, "b", 0)
	ctx := context.Background()

	ids, err := store.ListChannelIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	_, err = store.GetChannel(ctx, "missing")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestGormStoreHistoryNewestFirst(t *testing.T) {
	gdb, store := setupGormStore(t)
	ch := seedChannel(t, gdb, "a", 5)
	engine := NewEngine(store, store, store, WithClock(func() time.Time { return wednesday }))
	ctx := context.Background()

	for i := 14; i >= 0; i-- {
		_, err := engine.RollUp(ctx, ch.ID, PeriodWeekly, wednesday.AddDate(0, 0, -7*i))
		require.NoError(t, err)
	}

	history, err := store.History(ctx, ch.ID, PeriodWeekly, 0)
	require.NoError(t, err)
	require.Len(t, history, 12)
	assert.True(t, history[0].StartDate.After(history[1].StartDate))

	all, err := store.History(ctx, ch.ID, PeriodWeekly, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 15)

	// 仅最早的窗口没有上一期快照
	oldest := all[len(all)-1]
	assert.EqualValues(t, 5, oldest.SubscriptionGrowth)
	assert.EqualValues(t, 0, all[0].SubscriptionGrowth)
}

func TestEngineOnGormStoreScenario(t *testing.T) {
	gdb, store := setupGormStore(t)
	ch := seedChannel(t, gdb, "e", 100)
	engine := NewEngine(store, store, store, WithClock(func() time.Time { return wednesday }), WithWorkers(3))
	ctx := context.Background()

	lastWeek := wednesday.AddDate(0, 0, -7)
	for i := 0; i < 5; i++ {
		require.NoError(t, gdb.Create(&db.ChannelClick{ChannelID: ch.ID, UserID: uint(100 + i), ClickedAt: lastWeek}).Error)
	}
	_, err := engine.RollUp(ctx, ch.ID, PeriodWeekly, lastWeek)
	require.NoError(t, err)

	require.NoError(t, gdb.Model(&db.Channel{}).Where("id = ?", ch.ID).Update("subscription_count", 120).Error)
	for i := 0; i < 8; i++ {
		require.NoError(t, gdb.Create(&db.ChannelClick{ChannelID: ch.ID, UserID: uint(200 + i), ClickedAt: wednesday}).Error)
	}

	results, err := engine.RollUpAllPeriods(ctx, wednesday, PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Succeeded)

	current, err := store.FindSnapshot(ctx, ch.ID, PeriodWeekly, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.EqualValues(t, 120, current.SubscriptionCount)
	assert.EqualValues(t, 8, current.ClickCount)
	assert.EqualValues(t, 20, current.SubscriptionGrowth)
	assert.EqualValues(t, 3, current.ClickGrowth)
}
