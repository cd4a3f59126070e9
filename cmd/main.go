package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillmatch/skillmatch-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		application.Log.Error("Failed to start background services", "error", err)
		os.Exit(1)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		application.Log.Info("Shutdown signal received")
		application.Close()
		os.Exit(0)
	}()

	application.Log.Info("Server starting", "addr", application.Cfg.Addr)
	if err := application.Run(application.Cfg.Addr); err != nil {
		application.Log.Error("Server failed", "error", err)
	}
}
