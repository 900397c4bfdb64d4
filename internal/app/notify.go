package app

import (
	"context"
	"errors"
	"time"

	"busmon-analytics/internal/alerting"
)

// TestNotify 发送一条示例摘要，用于验证通知通道配置。
func (a *App) TestNotify(ctx context.Context) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何通知通道")
	}

	return notifier.Notify(ctx, alerting.Notification{
		Command:    "notify-test",
		Source:     a.Config.App.Name,
		Finished:   time.Now(),
		Flagged:    1,
		Highlights: []string{"test message, no data analysed"},
	})
}
