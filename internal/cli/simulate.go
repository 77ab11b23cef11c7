package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateCategory string
	simulateFloor    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次地板价跌破并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCategory == "" {
			return errors.New("--category 必须提供")
		}
		if simulateFloor <= 0 {
			return errors.New("--floor 必须大于 0")
		}

		floor := decimal.NewFromFloat(simulateFloor)
		return getApp().SimulateAlert(cmd.Context(), simulateCategory, floor)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCategory, "category", "", "要模拟的类别")
	simulateCmd.Flags().Float64Var(&simulateFloor, "floor", 0, "模拟地板价 (ETH)")
}
