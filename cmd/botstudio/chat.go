package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/botstudio/internal/dashboard"
	"gwi.com/botstudio/internal/models"
)

type chatFlags struct {
	docs       []string
	template   string
	system     string
	project    string
	question   string
	exportPath string
}

func newChatCmd(a *app) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Try your knowledge base in the playground",
		Long: `Chat with the selected knowledge base documents.

Without --doc every ready document is selected. Without --question the
playground is interactive; type /help for commands.`,
		PersistentPreRunE: a.loggedIn,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pg := a.svc.NewPlayground()
			if err := setupPlayground(a, pg, f); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.question != "" {
				err := ask(cmd.Context(), pg, out, f.question)
				if f.exportPath != "" {
					err = errors.Join(err, exportConversation(a, pg, f.exportPath))
				}
				return err
			}
			err := interactive(cmd.Context(), a, pg, cmd.InOrStdin(), out)
			if f.exportPath != "" {
				err = errors.Join(err, exportConversation(a, pg, f.exportPath))
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&f.docs, "doc", nil, "document id to chat with (repeatable)")
	cmd.Flags().StringVar(&f.template, "template", "", "conversation template id or name")
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt")
	cmd.Flags().StringVar(&f.project, "project", "", "attribute calls to this project")
	cmd.Flags().StringVarP(&f.question, "question", "q", "", "ask one question and exit")
	cmd.Flags().StringVar(&f.exportPath, "export", "", "write the conversation to this JSON file when done")
	cmd.AddCommand(newTemplatesCmd())
	return cmd
}

func setupPlayground(a *app, pg *dashboard.Playground, f chatFlags) error {
	if f.template != "" {
		if _, err := pg.ApplyTemplate(f.template); err != nil {
			return err
		}
	}
	if f.system != "" {
		pg.SetSystemPrompt(f.system)
	}
	pg.SetProject(f.project)

	docs := f.docs
	if len(docs) == 0 {
		for _, ds := range a.svc.ReadySources() {
			id := ds.RAGDocumentID
			if id == "" {
				id = ds.ID
			}
			docs = append(docs, id)
		}
	}
	pg.Select(docs...)
	return nil
}

func ask(ctx context.Context, pg *dashboard.Playground, out io.Writer, question string) error {
	reply, err := pg.Send(ctx, question)
	if reply != nil {
		fmt.Fprintln(out, botStyle.Render(reply.Content))
		return nil
	}
	// A failed answer still leaves an assistant message in the conversation.
	if msgs := pg.Messages(); len(msgs) > 0 && msgs[len(msgs)-1].Type == models.MessageAssistant {
		fmt.Fprintln(out, dimStyle.Render(msgs[len(msgs)-1].Content))
	}
	return err
}

const chatHelp = `/clear             start over
/template <id>     apply a conversation template
/export <file>     save the conversation as JSON
/quit              leave the playground`

func interactive(ctx context.Context, a *app, pg *dashboard.Playground, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, headerStyle.Render("Playground"))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d document(s) selected. Type /help for commands.", len(pg.Selected()))))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, dimStyle.Render(chatHelp))
			continue
		case "/clear":
			pg.Clear()
		case "/template":
			if t, err := pg.ApplyTemplate(strings.TrimSpace(arg)); err == nil {
				fmt.Fprintln(out, dimStyle.Render("Using "+t.Name))
			}
		case "/export":
			_ = exportConversation(a, pg, strings.TrimSpace(arg))
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Errors are already in the conversation and the toasts.
			_ = ask(ctx, pg, out, line)
		}
		printToasts(out, a.session.DrainNotifications())
	}
}

func exportConversation(a *app, pg *dashboard.Playground, path string) error {
	if path == "" {
		return errors.New("export needs a file name")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.svc.ExportConversation(f, pg.SystemPrompt(), pg.Messages())
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List conversation templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0)
			for _, t := range dashboard.Templates() {
				rows = append(rows, []string{t.ID, t.Name, t.Category, strings.Join(t.Tags, ", ")})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Category", "Tags"}, rows)
			return nil
		},
	}
}
