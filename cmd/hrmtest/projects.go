package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kuitang/orangehrm-e2e/internal/launcher"
)

func newInstallCmd(a *app) *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the playwright driver and browsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(names) == 0 {
				names = []string{"all"}
			}
			projects, err := launcher.Select(names)
			if err != nil {
				return err
			}
			a.log.Info("installing browsers")
			if err := a.install(projects); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", strings.Join(launcher.Engines(projects), ", "))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&names, "project", nil, "only install browsers for this project; repeatable")
	return cmd
}

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the browser and device projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header := color.New(color.Bold)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, header.Sprint("NAME")+"\t"+header.Sprint("ENGINE")+"\t"+header.Sprint("TARGET"))
			defaults := make(map[string]bool)
			for _, name := range launcher.Default {
				defaults[name] = true
			}
			for _, p := range launcher.All {
				name := p.Name
				if defaults[name] {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, p.Key(), projectTarget(p))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "* runs when no --project is given")
			return nil
		},
	}
}

func projectTarget(p launcher.Project) string {
	if p.Device != "" {
		return "device " + p.Device
	}
	return fmt.Sprintf("%dx%d", p.Viewport.Width, p.Viewport.Height)
}
