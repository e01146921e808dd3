package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/helpyt/internal/app"
	"github.com/helpyt/internal/config"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/stats"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedUserCount     = 8
	seedPassword      = "password123"
	backfillWeeks     = 8
	backfillMonths    = 3
	seedChannelDomain = "https://www.youtube.com/"
)

var seedChannels = []struct {
	Handle      string
	Name        string
	Description string
	Subscribers int64
}{
	{"gophertalks", "Gopher Talks", "Go 语言**实战**分享，每周更新。", 12800},
	{"dailyvlog", "Daily Vlog", "记录生活的小频道", 860},
	{"retrogames", "Retro Games", "经典游戏通关与评测", 45200},
	{"cookwithme", "Cook With Me", "家常菜教程\n\n- 快手菜\n- 烘焙", 3100},
	{"nightsky", "Night Sky", "天文摄影入门", 275},
}

var seedBookmarks = []struct {
	URL    string
	Title  string
	Status string
}{
	{"https://go.dev/doc/effective_go", "Effective Go", db.BookmarkPublic},
	{"https://gorm.io/docs/", "GORM Guides", db.BookmarkPublic},
	{"https://gin-gonic.com/docs/", "Gin Web Framework", db.BookmarkPrivate},
	{"https://www.youtube.com/creators/", "YouTube Creators", db.BookmarkPublic},
}

// 测试数据生成器
func main() {
	cfg := config.Load()
	a, err := app.New(cfg)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}
	defer a.Close()

	fmt.Println("开始生成测试数据...")

	now := db.NowUTC()
	users := createTestUsers()
	channels := createTestChannels(users)
	createTestClicks(users, channels, now)
	createTestBookmarks(users)

	if err := backfillHistory(context.Background(), a.Engine, now); err != nil {
		log.Fatal("统计快照生成失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("用户: user1@example.com ~ user%d@example.com (密码: %s)\n", seedUserCount, seedPassword)
	fmt.Printf("频道: %d 个, 历史快照: %d 周 / %d 月\n", len(channels), backfillWeeks, backfillMonths)
}

// 创建测试用户，已存在的邮箱直接复用
func createTestUsers() []db.User {
	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("密码加密失败:", err)
	}

	users := make([]db.User, 0, seedUserCount)
	for i := 1; i <= seedUserCount; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		user := db.User{Email: email, Name: fmt.Sprintf("user%d", i), Password: string(hashed), Role: db.RoleUser}
		if err := db.DB.Where(db.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
			log.Fatal("创建用户失败:", err)
		}
		users = append(users, user)
	}

	fmt.Println("✅ 测试用户创建完成")
	return users
}

// 创建测试频道，按链接去重
func createTestChannels(users []db.User) []db.Channel {
	channels := make([]db.Channel, 0, len(seedChannels))
	for i, seed := range seedChannels {
		alias := "@" + seed.Handle
		ch := db.Channel{
			ChannelLink:       seedChannelDomain + alias,
			ChannelName:       seed.Name,
			ChannelAlias:      &alias,
			Description:       seed.Description,
			SubscriptionCount: seed.Subscribers,
			CreatedBy:         users[i%len(users)].ID,
		}
		if err := db.DB.Where(db.Channel{ChannelLink: ch.ChannelLink}).FirstOrCreate(&ch).Error; err != nil {
			log.Fatal("创建频道失败:", err)
		}
		channels = append(channels, ch)
	}

	fmt.Println("✅ 测试频道创建完成")
	return channels
}

// 将点击分散到最近几周，便于生成有增长的历史快照
func createTestClicks(users []db.User, channels []db.Channel, now time.Time) {
	var before, after int64
	db.DB.Model(&db.ChannelClick{}).Count(&before)
	for ci, ch := range channels {
		for ui, user := range users {
			if (ci+ui)%3 == 0 {
				continue
			}
			click := db.ChannelClick{
				ChannelID: ch.ID,
				UserID:    user.ID,
				ClickedAt: now.AddDate(0, 0, -((ci*5 + ui*3) % (backfillWeeks * 7))),
			}
			if err := db.DB.Where(db.ChannelClick{ChannelID: ch.ID, UserID: user.ID}).FirstOrCreate(&click).Error; err != nil {
				log.Fatal("创建点击记录失败:", err)
			}
		}
	}
	db.DB.Model(&db.ChannelClick{}).Count(&after)

	fmt.Printf("✅ 测试点击创建完成 (新增 %d 条)\n", after-before)
}

// 创建测试收藏，第一个用户点赞所有公开收藏
func createTestBookmarks(users []db.User) {
	for i, seed := range seedBookmarks {
		owner := users[(i+1)%len(users)]
		b := db.Bookmark{URL: seed.URL, Title: seed.Title, Status: seed.Status, UserID: owner.ID}
		if err := db.DB.Where(db.Bookmark{URL: seed.URL, UserID: owner.ID}).FirstOrCreate(&b).Error; err != nil {
			log.Fatal("创建收藏失败:", err)
		}
		if b.Status != db.BookmarkPublic {
			continue
		}
		like := db.BookmarkLike{BookmarkID: b.ID, UserID: users[0].ID}
		if err := db.DB.Where(db.BookmarkLike{BookmarkID: b.ID, UserID: users[0].ID}).FirstOrCreate(&like).Error; err != nil {
			log.Fatal("创建点赞失败:", err)
		}
	}

	fmt.Println("✅ 测试收藏创建完成")
}

// 从最早的窗口开始依次统计，保证每个窗口都能找到上一期快照
func backfillHistory(ctx context.Context, engine *stats.Engine, now time.Time) error {
	for i := backfillWeeks - 1; i >= 0; i-- {
		if _, err := engine.RollUpAll(ctx, stats.PeriodWeekly, now.AddDate(0, 0, -7*i)); err != nil {
			return err
		}
	}
	// 月份锚点取当月 15 日，AddDate 在 29~31 日会溢出到下个月
	for i := backfillMonths - 1; i >= 0; i-- {
		anchor := time.Date(now.Year(), now.Month()-time.Month(i), 15, 12, 0, 0, 0, now.Location())
		if _, err := engine.RollUpAll(ctx, stats.PeriodMonthly, anchor); err != nil {
			return err
		}
	}

	fmt.Println("✅ 历史统计快照生成完成")
	return nil
}
