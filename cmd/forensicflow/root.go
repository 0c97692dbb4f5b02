package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "forensicflow"}

	root.AddCommand(serveCMD(), migrateCMD(), ingestCMD(), insightsCMD())
	_ = root.Execute()
}
