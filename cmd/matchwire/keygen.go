package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matchwire/matchwire/internal/server"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an agent api key and its server-side hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := server.NewAPIKey()
			if err != nil {
				return err
			}
			hash, err := server.HashAPIKey(key)
			if err != nil {
				return err
			}
			fmt.Printf("api key (agent config, api_key):\n  %s\n", key)
			fmt.Printf("key hash (server config, api_key_hash):\n  %s\n", hash)
			return nil
		},
	}
}
