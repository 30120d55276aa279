package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/app"
	"github.com/damgoweb/tokaido-orai/internal/dashboard"
	"github.com/damgoweb/tokaido-orai/internal/logging"
	"github.com/damgoweb/tokaido-orai/internal/state"
)

func init() {
	rootCmd.Flags().Bool("dashboard", false, "Also serve the browser dashboard while the UI runs")
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Seed.Enabled() {
		if _, err := runSeed(cmd.Context(), e); err != nil {
			e.logger.Printf("seed failed: %v", err)
		}
	}

	cat, err := e.loadCatalog()
	if err != nil {
		return err
	}

	shared := state.New(cat)

	if withDashboard, _ := cmd.Flags().GetBool("dashboard"); withDashboard {
		srv := dashboard.NewServer(dashboard.Config{
			Host:   e.cfg.Dashboard.Host,
			Port:   e.cfg.Dashboard.Port,
			State:  shared,
			Logger: logging.New(e.logOut, "dashboard"),
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
		defer srv.Stop()
	}

	m := app.New(app.Options{
		Store:      e.store,
		Catalog:    cat,
		State:      shared,
		SocketPath: e.cfg.PlayerSocket,
		ExportDir:  e.cfg.ExportDir,
		Logger:     logging.New(e.logOut, "tui"),
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
