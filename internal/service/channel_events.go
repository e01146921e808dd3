package service

import (
	"context"
	"time"
)

// ChannelEventKind 标识频道变更的类型。
type ChannelEventKind string

const (
	ChannelClicked ChannelEventKind = "clicked"
	ChannelUpdated ChannelEventKind = "updated"
	ChannelDeleted ChannelEventKind = "deleted"
)

// ChannelEvent 在主写入提交后发布给观察者。
type ChannelEvent struct {
	Kind      ChannelEventKind
	ChannelID string
	UserID    uint
	At        time.Time
}

// ChannelObserver 接收频道变更通知，实现方自行处理失败，不能影响主流程。
type ChannelObserver interface {
	ChannelChanged(ctx context.Context, event ChannelEvent)
}

// ChannelObserverFunc 让普通函数满足 ChannelObserver。
type ChannelObserverFunc func(ctx context.Context, event ChannelEvent)

// ChannelChanged 调用函数本身。
func (f ChannelObserverFunc) ChannelChanged(ctx context.Context, event ChannelEvent) {
	f(ctx, event)
}
