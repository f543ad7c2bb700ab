package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/botstudio/internal/dashboard"
	"gwi.com/botstudio/internal/models"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "keys",
		Short:             "Manage API keys",
		PersistentPreRunE: a.loggedIn,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := a.svc.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				project := k.ProjectID
				if project == "" {
					project = "all"
				}
				rows = append(rows, []string{k.ID, k.Name, k.Masked(), project, k.CreatedAt.Local().Format("2006-01-02")})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Key", "Project", "Created"}, rows)
			return nil
		},
	})

	var name, project string
	create := &cobra.Command{
		Use:   "create",
		Short: "Generate a new API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, key, err := a.svc.GenerateAPIKey(cmd.Context(), name, project)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderField(out, "ID", key.ID)
			renderField(out, "Key", secret)
			fmt.Fprintln(out, dimStyle.Render("Copy the key now, it will not be shown again."))
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "key name")
	create.Flags().StringVar(&project, "project", "", "restrict the key to one project")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"revoke"},
		Short:   "Revoke an API key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.svc.DeleteAPIKey(cmd.Context(), args[0])
		},
	})
	return cmd
}

func renderProfile(w io.Writer, p *models.UserProfile) {
	fmt.Fprintln(w, headerStyle.Render(p.Name))
	renderField(w, "Email", p.Email)
	renderField(w, "Company", p.Company)
	renderField(w, "Role", p.Role)
	if p.SessionTimeout != "" {
		renderField(w, "Session timeout", p.SessionTimeout)
	}
}

func newProfileCmd(a *app) *cobra.Command {
	show := func(cmd *cobra.Command, _ []string) error {
		p, err := a.svc.Profile(cmd.Context())
		if err != nil {
			return err
		}
		renderProfile(cmd.OutOrStdout(), p)
		return nil
	}
	cmd := &cobra.Command{
		Use:               "profile",
		Short:             "Show or change your profile",
		PersistentPreRunE: a.loggedIn,
		RunE:              show,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE:  show,
	})

	var update models.ProfileUpdate
	set := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if update == (models.ProfileUpdate{}) {
				return errors.New("nothing to update")
			}
			p, err := a.svc.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
	set.Flags().StringVar(&update.Name, "name", "", "full name")
	set.Flags().StringVar(&update.Email, "email", "", "account email")
	set.Flags().StringVar(&update.Company, "company", "", "company name")
	set.Flags().StringVar(&update.Role, "role", "", "job role")
	set.Flags().StringVar(&update.SessionTimeout, "session-timeout", "", "session timeout, e.g. 30m")
	cmd.AddCommand(set)
	return cmd
}

func newAnalyticsCmd(a *app) *cobra.Command {
	var rng string
	cmd := &cobra.Command{
		Use:               "analytics",
		Short:             "Show usage across your projects",
		PersistentPreRunE: a.loggedIn,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.svc.Analytics(cmd.Context(), rng)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Analytics, last "+report.Range))
			renderField(out, "Projects", fmt.Sprintf("%d (%d deployed)", report.Summary.TotalProjects, report.Summary.DeployedProjects))
			renderField(out, "Documents", fmt.Sprint(report.Summary.TotalDocuments))
			renderField(out, "API calls", fmt.Sprint(report.Summary.TotalAPICalls))

			fmt.Fprintln(out, sectionStyle.Render("Calls over time"))
			series := make([][]string, 0, len(report.TimeSeries))
			for _, p := range report.TimeSeries {
				series = append(series, []string{p.Date, fmt.Sprint(p.Calls)})
			}
			renderTable(out, []string{"Date", "Calls"}, series)

			fmt.Fprintln(out, sectionStyle.Render("By project"))
			projects := make([][]string, 0, len(report.Projects))
			for _, p := range report.Projects {
				projects = append(projects, []string{p.Name, fmt.Sprint(p.Calls)})
			}
			renderTable(out, []string{"Project", "Calls"}, projects)
			return nil
		},
	}
	cmd.Flags().StringVar(&rng, "range", "7d", "one of "+strings.Join(dashboard.AnalyticsRanges, ", "))
	return cmd
}

func newBillingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Plans and invoices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "plans",
		Short: "List the available plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			current := dashboard.CurrentPlan(dashboard.CurrentPlanID)
			rows := make([][]string, 0)
			for _, p := range dashboard.Plans() {
				name := p.Name
				if p.ID == current.ID {
					name += " (current)"
				}
				rows = append(rows, []string{name, p.FormatPrice(), p.Description, strings.Join(p.Features, ", ")})
			}
			renderTable(cmd.OutOrStdout(), []string{"Plan", "Price", "Description", "Features"}, rows)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "invoices",
		Short: "List past invoices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0)
			for _, inv := range dashboard.Invoices() {
				rows = append(rows, []string{inv.ID, inv.Date, fmt.Sprintf("$%.2f", inv.Amount), statusBadge(inv.Status), inv.Description})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Date", "Amount", "Status", "Description"}, rows)
			return nil
		},
	})

	var outPath string
	export := &cobra.Command{
		Use:     "export <invoice-id>",
		Aliases: []string{"download"},
		Short:   "Save an invoice as JSON",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, ok := dashboard.FindInvoice(args[0])
			if !ok {
				return fmt.Errorf("no invoice %q", args[0])
			}
			path := outPath
			if path == "" {
				path = dashboard.InvoiceFileName(inv)
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := a.svc.ExportInvoice(f, inv); err != nil {
				return err
			}
			renderField(cmd.OutOrStdout(), "Saved", path)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	cmd.AddCommand(export)
	return cmd
}
