package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloudflare-media-provider/internal"
	"cloudflare-media-provider/internal/storage"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	configPath string
	logLevel   string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "cfmedia",
		Short:         "Upload and delete media on Cloudflare Stream and Images",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(c.uploadCmd(), c.deleteCmd())
	return rootCmd
}

func (c *cli) provider() (storage.Provider, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: internal.ParseLevel(c.logLevel),
	}))
	slog.SetDefault(logger)

	config, err := internal.GetConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	return storage.NewCloudflareStorage(config.Cloudflare.StorageConfig(logger))
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file and print the resulting record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			provider, err := c.provider()
			if err != nil {
				return err
			}

			uploaded, err := provider.Upload(cmd.Context(), internal.NewStorageFile(args[0], "", content))
			if err != nil {
				internal.DiscardPartialUpload(cmd.Context(), provider, err)
				return err
			}

			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(internal.NewFileRecord(uploaded))
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	var rawMetadata string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the assets described by stored provider metadata",
		Example: `  cfmedia delete --metadata '{"public_id":"abc123","source":"stream"}'
  cfmedia delete --metadata '{"public_id":"p1","resource_type":"png","webp":{"public_id":"p2"}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta storage.ProviderMetadata
			if err := json.Unmarshal([]byte(rawMetadata), &meta); err != nil {
				return fmt.Errorf("invalid metadata: %w", err)
			}
			if meta.PublicID == "" {
				return fmt.Errorf("invalid metadata: public_id is required")
			}

			provider, err := c.provider()
			if err != nil {
				return err
			}

			if err := provider.Delete(cmd.Context(), storage.File{ProviderMetadata: &meta}); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %s\n", meta.PublicID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&rawMetadata, "metadata", "m", "", "Provider metadata JSON as stored with the file (required)")
	cmd.MarkFlagRequired("metadata")
	return cmd
}
