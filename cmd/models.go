package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dmorgan81/modelsweep/internal/inject"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/progress"
	"github.com/dmorgan81/modelsweep/internal/registry"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var (
	modelStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
)

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model registry and where each image would be written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.NewContext(cmd.Context(), newLogger(cmd.ErrOrStderr(), opts))

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			injector := inject.Setup(ctx, cfg, progress.Discard{}, "")
			defer injector.Shutdown()

			loader, err := do.Invoke[registry.Loader](injector)
			if err != nil {
				return err
			}
			models, err := loader.Load(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range registry.Describe(models, cfg.Output.Dir) {
				if e.Err != nil {
					fmt.Fprintf(out, "%s\t%s\n", modelStyle.Render(e.Model), errStyle.Render(e.Err.Error()))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", modelStyle.Render(e.Model), e.Output)
			}
			return nil
		},
	}
}
