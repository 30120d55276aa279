package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/dashboard"
	"github.com/damgoweb/tokaido-orai/internal/logging"
	"github.com/damgoweb/tokaido-orai/internal/player"
	"github.com/damgoweb/tokaido-orai/internal/state"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "serve",
	Short:   "Serve the active segment to browsers over WebSocket",
	Long: `Follow the narration player and broadcast the active segment and
station to connected browsers.

WebSocket messages include:
- active_segment: the segment, station and playback time changed
- sync_points: the number of stored sync points changed

Example usage:
  tokaido dashboard                # Listen on dashboard.host:dashboard.port
  tokaido dashboard --port 9000    # Custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		cat, err := e.loadCatalog()
		if err != nil {
			return err
		}
		points, err := e.store.All(cmd.Context())
		if err != nil {
			return err
		}
		shared := state.New(cat)
		shared.SetPoints(points)

		port := e.cfg.Dashboard.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		server := dashboard.NewServer(dashboard.Config{
			Host:   e.cfg.Dashboard.Host,
			Port:   port,
			State:  shared,
			Logger: logging.New(e.logOut, "dashboard"),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go followPlayer(ctx, e.cfg.PlayerSocket, shared, logging.New(e.logOut, "player"))

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("Dashboard server stopped")
		return nil
	},
}

// followPlayer feeds player events into shared until ctx is done,
// reconnecting with backoff when the player goes away.
func followPlayer(ctx context.Context, sockPath string, shared *state.Store, logger *log.Logger) {
	attempt := 0
	for ctx.Err() == nil {
		err := followOnce(ctx, sockPath, shared)
		shared.SetPlaying(false)
		if ctx.Err() != nil {
			return
		}
		if attempt == 0 {
			logger.Printf("player unavailable: %v", err)
		}
		delay := time.Duration(1<<min(attempt, 4)) * time.Second
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func followOnce(ctx context.Context, sockPath string, shared *state.Store) error {
	client, err := player.Connect(sockPath)
	if err != nil {
		return err
	}
	defer client.Close()

	// Unblock ReadEvent on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-stop:
		}
	}()

	st, err := client.Status()
	if err != nil {
		return err
	}
	shared.SetDuration(st.Duration)
	shared.SetPlaying(st.Playing)
	shared.Tick(st.Time)

	if err := client.Subscribe(); err != nil {
		return err
	}
	for {
		ev, err := client.ReadEvent()
		if err != nil {
			return err
		}
		st = st.Apply(ev)
		switch ev.Event {
		case player.EventPlay, player.EventPause, player.EventEnded:
			shared.SetPlaying(st.Playing)
		case player.EventDurationChange:
			shared.SetDuration(st.Duration)
		}
		if ev.Time != nil || ev.Event == player.EventEnded {
			shared.Tick(st.Time)
		}
	}
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default: dashboard.port)")

	rootCmd.AddCommand(dashboardCmd)
}
