package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/botstudio/internal/models"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "projects",
		Aliases:           []string{"project"},
		Short:             "Manage chatbot projects",
		PersistentPreRunE: a.loggedIn,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := a.svc.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{
					p.ID, p.Name, p.Model, statusBadge(string(p.Status)),
					fmt.Sprint(len(p.Documents)), fmt.Sprint(p.APICalls),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Model", "Status", "Docs", "API calls"}, rows)
			return nil
		},
	})

	cmd.AddCommand(newProjectCreateCmd(a), newProjectUpdateCmd(a))

	cmd.AddCommand(&cobra.Command{
		Use:   "deploy <id>",
		Short: "Deploy a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.svc.DeployProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			renderField(cmd.OutOrStdout(), "Endpoint", a.svc.ProjectEndpoint(args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.svc.DeleteProject(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "endpoint <id>",
		Short: "Print the public chat endpoint of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.svc.ProjectEndpoint(args[0]))
			return nil
		},
	})
	return cmd
}

type projectFlags struct {
	name, description, model, systemPrompt string
	temperature                            float64
	documents                              []string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "project name")
	cmd.Flags().StringVar(&f.description, "description", "", "short description")
	cmd.Flags().StringVar(&f.model, "model", "", "model name")
	cmd.Flags().StringVar(&f.systemPrompt, "system-prompt", "", "system prompt")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().StringSliceVar(&f.documents, "doc", nil, "knowledge base document id (repeatable)")
}

// input keeps only the flags the user set, so updates stay partial.
func (f *projectFlags) input(cmd *cobra.Command) models.ProjectInput {
	in := models.ProjectInput{
		Name:  strings.TrimSpace(f.name),
		Model: f.model,
	}
	if cmd.Flags().Changed("description") {
		d := f.description
		in.Description = &d
	}
	if cmd.Flags().Changed("system-prompt") {
		p := f.systemPrompt
		in.SystemPrompt = &p
	}
	if cmd.Flags().Changed("temperature") {
		t := f.temperature
		in.Temperature = &t
	}
	if cmd.Flags().Changed("doc") {
		in.DocumentIDs = f.documents
	}
	return in
}

func newProjectCreateCmd(a *app) *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.svc.CreateProject(cmd.Context(), f.input(cmd))
			if err != nil {
				return err
			}
			renderField(cmd.OutOrStdout(), "ID", p.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newProjectUpdateCmd(a *app) *cobra.Command {
	var (
		f      projectFlags
		status string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change project settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := f.input(cmd)
			in.Status = models.ProjectStatus(status)
			p, err := a.svc.UpdateProject(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			renderField(cmd.OutOrStdout(), "Status", statusBadge(string(p.Status)))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "development, testing or deployed")
	return cmd
}
