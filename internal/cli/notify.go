package cli

import (
	"github.com/spf13/cobra"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "发送一条测试摘要以验证通知配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TestNotify(cmd.Context())
	},
}
