package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matchwire/matchwire/internal/agent"
	"github.com/matchwire/matchwire/internal/config"
	"github.com/matchwire/matchwire/internal/gameclient"
	"github.com/matchwire/matchwire/internal/snapshot"
)

func newAgentCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Observe the local game client and stream match updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.AgentConfigPath(), "path to the agent config file")
	return cmd
}

func runAgent(configPath string) error {
	cfg, err := config.LoadAgent(configPath)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("no api key configured; set api_key in %s or MATCHWIRE_API_KEY", configPath)
	}

	client := gameclient.NewClient(gameclient.Options{
		Region:       cfg.Region,
		Shard:        cfg.Shard,
		LockfilePath: cfg.LockfilePath,
	})

	cache, err := snapshot.OpenNameCache("")
	if err != nil {
		log.Printf("[Agent] Name cache unavailable, falling back to remote lookups: %v", err)
		cache = nil
	}
	if cache != nil {
		defer cache.Close()
	}

	norm := snapshot.NewNormalizer(cache, client, client)
	session := agent.NewSession(agent.Config{
		ServerURL:        cfg.ServerURL,
		APIKey:           cfg.APIKey,
		PollInterval:     cfg.PollInterval.Std(),
		PostSendInterval: cfg.PostSendInterval.Std(),
	}, client, norm)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Printf("[Agent] Stopped")
	return nil
}
