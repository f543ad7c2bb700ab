package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/poller"
)

func renderDataSources(w io.Writer, sources []models.DataSource) {
	rows := make([][]string, 0, len(sources))
	for _, ds := range sources {
		rows = append(rows, []string{
			ds.ID, ds.Name, formatSize(ds.Size), statusBadge(string(ds.Status)),
			ds.UploadedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	renderTable(w, []string{"ID", "Name", "Size", "Status", "Uploaded"}, rows)
}

func newDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "data",
		Aliases:           []string{"kb"},
		Short:             "Manage knowledge base documents",
		PersistentPreRunE: a.loggedIn,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := a.svc.ListDataSources(cmd.Context())
			if err != nil {
				return err
			}
			renderDataSources(cmd.OutOrStdout(), sources)
			return nil
		},
	})

	var wait bool
	upload := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload PDF, DOCX or TXT files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				if _, err := a.svc.UploadPath(cmd.Context(), path); err != nil {
					errs = append(errs, err)
				}
			}
			if wait && len(errs) < len(args) {
				if err := watchProcessing(cmd.Context(), a, cmd.OutOrStdout()); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	upload.Flags().BoolVar(&wait, "wait", false, "wait until processing finishes")
	cmd.AddCommand(upload)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.svc.DeleteDataSource(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow documents until none is processing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watchProcessing(cmd.Context(), a, cmd.OutOrStdout())
		},
	})
	return cmd
}

// watchProcessing polls the backend while any document is processing and
// prints the list each time it changes.
func watchProcessing(ctx context.Context, a *app, out io.Writer) error {
	if !a.session.HasProcessing() {
		renderDataSources(out, a.session.DataSources.List())
		return nil
	}

	watched := make(map[string]bool)
	for _, ds := range a.session.DataSources.List() {
		if ds.Status == models.DocumentProcessing {
			watched[ds.ID] = true
		}
	}

	changes, unsubscribe := a.session.Subscribe()
	defer unsubscribe()

	p := poller.New(a.session, a.client, a.cfg.PollInterval, a.logger)
	h := p.Start(ctx)
	defer h.Stop()

	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Waiting for processing, checking every %s...", a.cfg.PollInterval)))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.Failures():
			return fmt.Errorf("stopped watching: %w", err)
		case <-changes:
			if a.session.HasProcessing() {
				continue
			}
			renderDataSources(out, a.session.DataSources.List())
			var failed []error
			for _, ds := range a.session.DataSources.List() {
				if watched[ds.ID] && ds.Status == models.DocumentError {
					failed = append(failed, fmt.Errorf("%s could not be processed", ds.Name))
				}
			}
			return errors.Join(failed...)
		}
	}
}
