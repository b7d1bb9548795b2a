package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studyroom",
	Short: "StudyRoom is a real-time collaborative study room server.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env необязателен, переменные окружения имеют приоритет
		_ = godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
