/*
Copyright 2024 Bancore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bancore/bancore/api"
	"github.com/bancore/bancore/config"
)

func initializeRouter(b *bancoreInstance) (*gin.Engine, error) {
	a, err := api.NewAPI(b.bancore)
	if err != nil {
		return nil, err
	}
	return a.Router(), nil
}

// startServer runs the HTTP server and drains in-flight requests on
// SIGINT/SIGTERM before exiting.
func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// serverCommands returns the Cobra command responsible for starting the
// Bancore API server.
func serverCommands(b *bancoreInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start bancore server",
		Run: func(cmd *cobra.Command, args []string) {
			router, err := initializeRouter(b)
			if err != nil {
				log.Fatal(err)
			}

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
