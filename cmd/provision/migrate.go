package main

import (
	"os"

	"github.com/autom8ter/provision"
	"github.com/autom8ter/provision/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply a list of descriptors across databases as root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bits, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, errors.Validation, "failed to read %s", file)
			}
			descriptors, err := provision.ParseDescriptors(bits)
			if err != nil {
				return err
			}
			s, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer s.close()
			tools, err := provision.NewTools(provision.ToolsConfig{
				URL:          s.url,
				RootPassword: s.rootPassword,
				Lenient:      s.lenient,
				Logger:       s.logger,
			})
			if err != nil {
				return err
			}
			accessors, err := tools.Migrate(ctx, descriptors)
			if err != nil {
				s.logger.Error(ctx, "migrate failed", err, map[string]any{"file": file})
				return err
			}
			out := map[string]any{
				"collections": lo.Keys(accessors.Collections),
			}
			if db := accessors.Database(); db != nil {
				out["database"] = db.Name()
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "migrations.yaml", "descriptor list (yaml or json)")
	return cmd
}
