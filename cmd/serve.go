/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seckatie/mirrorup/internal/core/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Browse the upload history in a web page",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := historyDB(cmd)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()

		// Get the host and port from the flags
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			log.Fatalf("Failed to get host: %v", err)
		}
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			log.Fatalf("Failed to get port: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.SetLevel(log.InfoLevel)
		if err := web.StartServer(ctx, fmt.Sprintf("%s:%d", host, port), database); err != nil {
			log.Fatalf("Web server failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "localhost", "Host to listen on")
}
