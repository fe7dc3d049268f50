package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dialoq/dialoq/internal/output"
)

var limitsJSON bool

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the effective admission limits",
	Long: `Show the effective per-user admission limits the relay enforces,
after defaults, config file, and environment variables are applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		type effectiveLimits struct {
			MaxMessages   int    `json:"max_messages"`
			Window        string `json:"window"`
			BanDuration   string `json:"ban_duration"`
			WarnThreshold int    `json:"warn_threshold"`
			StoreCapacity int    `json:"store_capacity"`
		}

		limits := effectiveLimits{
			MaxMessages:   viper.GetInt("limits.max_messages"),
			Window:        viper.GetDuration("limits.window").String(),
			BanDuration:   viper.GetDuration("limits.ban_duration").String(),
			WarnThreshold: viper.GetInt("limits.warn_threshold"),
			StoreCapacity: viper.GetInt("store.capacity"),
		}

		if limitsJSON {
			payload, err := json.MarshalIndent(limits, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		rows := []output.LimitRow{
			{Setting: "limits.max_messages", Value: fmt.Sprintf("%d", limits.MaxMessages), Description: "Messages admitted per window"},
			{Setting: "limits.window", Value: limits.Window, Description: "Fixed rate-limit window"},
			{Setting: "limits.ban_duration", Value: limits.BanDuration, Description: "Ban applied on a violation"},
			{Setting: "limits.warn_threshold", Value: fmt.Sprintf("%d", limits.WarnThreshold), Description: "Count that triggers the near-limit warning"},
			{Setting: "store.capacity", Value: fmt.Sprintf("%d", limits.StoreCapacity), Description: "Maximum tracked users"},
		}
		fmt.Println(output.LimitsTable(rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.Flags().BoolVar(&limitsJSON, "json", false, "output as JSON")
}
