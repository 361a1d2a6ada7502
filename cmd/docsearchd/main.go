// Docsearchd is the document indexing and retrieval daemon.
//
// It serves access-scoped semantic search and retrieval-augmented answers
// over uploaded documents, backed by a Qdrant vector store.
//
// Usage:
//
//	# Start server with defaults
//	docsearchd serve
//
//	# Configure via file and environment
//	docsearchd serve --config config.yaml
//	SERVER_PORT=9090 QDRANT_HOST=qdrant.internal docsearchd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docsearchd",
	Short: "Document indexing and retrieval daemon",
	Long: `docsearchd indexes uploaded documents into a vector store and serves
access-scoped semantic search and retrieval-augmented answers over them.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docsearchd HTTP server",
	Long: `Start the docsearchd HTTP server.

Configuration is loaded from the --config YAML file (if present), then
overridden by environment variables (SERVER_PORT, QDRANT_HOST,
EMBEDDINGS_API_KEY, ...).`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docsearchd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
