package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var env string

var rootCmd = &cobra.Command{
	Use:   "iiifsearch",
	Short: "Search and indexing service for IIIF resources",
	Long: `iiifsearch stores IIIF resources and the text flattened out of them,
and answers faceted full-text searches over that text.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "config environment, overrides ENV")
	rootCmd.AddCommand(serveCmd, flattenCmd)
}

func main() {
	godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
