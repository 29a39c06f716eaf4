package main

import (
	"os"

	"github.com/autom8ter/provision"
	"github.com/autom8ter/provision/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func ensureCmd(flags *globalFlags) *cobra.Command {
	var (
		file                string
		truncateConcurrency int
	)
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "connect to a database, creating it when a root password is given, and apply an ensure document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bits, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, errors.Validation, "failed to read %s", file)
			}
			cfg, err := provision.ParseConfig(bits)
			if err != nil {
				return err
			}
			if flags.url == "" {
				flags.url = cfg.URL
			}
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			cfg.URL = s.url
			cfg.Logger = s.logger
			cfg.Lenient = cfg.Lenient || s.lenient
			if s.rootPassword != "" {
				cfg.RootPassword = s.rootPassword
			}
			if truncateConcurrency > 0 {
				cfg.TruncateConcurrency = truncateConcurrency
			}
			accessors, err := provision.Ensure(ctx, cfg)
			if err != nil {
				s.logger.Error(ctx, "ensure failed", err, map[string]any{"file": file})
				return err
			}
			return printJSON(map[string]any{
				"database":    accessors.Database().Name(),
				"collections": lo.Keys(accessors.Collections),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "ensure.yaml", "ensure document (yaml or json)")
	cmd.Flags().IntVar(&truncateConcurrency, "truncate-concurrency", 0, "collections truncated at once")
	return cmd
}
