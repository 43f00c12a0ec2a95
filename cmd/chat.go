package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
	"github.com/ziadkadry99/pdf-inquiry/internal/walker"
)

var chatCmd = &cobra.Command{
	Use:   "chat [pdf...]",
	Short: "Start an interactive chat about your documents",
	Long: `Starts an interactive session. PDFs given as arguments are uploaded
first. Type a question to ask about the selected document, or one of:

  /upload <file|dir|glob>   upload more PDFs
  /files                    list uploaded files
  /select <filename>        switch to an uploaded file
  /open <fingerprint>       reopen a previous conversation
  /history                  list previous conversations
  /summary                  summarize the selected document
  /new                      start a new chat
  /quit                     leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	c := &chatSession{app: a, sess: rag.NewSession(currentUser()), out: cmd.OutOrStdout()}
	if len(args) > 0 {
		c.upload(ctx, args)
	}
	fmt.Fprintln(c.out, "📄 PDF-Inquiry And Response System. Type /quit to leave.")
	return c.loop(ctx, cmd.InOrStdin())
}

type chatSession struct {
	app  *app
	sess *rag.Session
	out  io.Writer
}

func (c *chatSession) loop(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			c.reply(c.app.rag.AskSession(ctx, c.sess, line))
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/quit", "/exit":
			return nil
		case "/upload":
			c.upload(ctx, strings.Fields(arg))
		case "/files":
			c.files()
		case "/select":
			if !c.sess.SelectFile(arg) {
				fmt.Fprintf(c.out, "No uploaded file named %q\n", arg)
				continue
			}
			fmt.Fprintf(c.out, "Selected 📄 %s\n", arg)
		case "/open":
			c.open(ctx, arg)
		case "/history":
			c.history(ctx)
		case "/summary":
			c.reply(c.app.rag.SummarizeSession(ctx, c.sess))
		case "/new":
			c.sess.Reset()
			fmt.Fprintln(c.out, "Started a new chat.")
		default:
			fmt.Fprintf(c.out, "Unknown command %s\n", command)
		}
	}
}

func (c *chatSession) reply(r *rag.Reply, err error) {
	switch {
	case errors.Is(err, rag.ErrNoDocument):
		fmt.Fprintf(c.out, "🤖 %s\n", err.Error())
	case err != nil:
		fmt.Fprintf(c.out, "Error: %v\n", err)
	default:
		fmt.Fprintf(c.out, "🤖 %s\n", r.Answer)
	}
}

func (c *chatSession) upload(ctx context.Context, patterns []string) {
	if len(patterns) == 0 {
		fmt.Fprintln(c.out, "Usage: /upload <file|dir|glob>")
		return
	}
	files, _, err := walker.Collect(walker.Config{Patterns: patterns})
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	uploads := make([]rag.Upload, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			fmt.Fprintf(c.out, "Error reading %s: %v\n", f.Path, err)
			continue
		}
		uploads = append(uploads, rag.Upload{Filename: f.Name, Data: data})
	}
	fmt.Fprintf(c.out, "Processing %d file(s)...\n", len(uploads))
	for _, res := range c.app.rag.UploadAll(ctx, c.sess, uploads) {
		switch {
		case res.Err != nil:
			fmt.Fprintf(c.out, "❌ %s: %v\n", res.Filename, res.Err)
		case res.Skipped:
			fmt.Fprintf(c.out, "%s was already uploaded\n", res.Filename)
		default:
			fmt.Fprintf(c.out, "✅ %s processed successfully\n", res.Filename)
		}
	}
	c.files()
}

func (c *chatSession) files() {
	cur, _ := c.sess.Current()
	for _, f := range c.sess.Files() {
		marker := " "
		if f.Fingerprint == cur {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s 📄 %s\n", marker, f.Name)
	}
}

func (c *chatSession) open(ctx context.Context, arg string) {
	fp, err := fingerprint.Parse(arg)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	view, err := c.app.rag.OpenConversation(ctx, c.sess, fp)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "— %s —\n", view.Name)
	for _, t := range view.Turns {
		fmt.Fprintf(c.out, "🧍 %s\n🤖 %s\n", t.Question, t.Answer)
	}
	if !view.Loaded {
		fmt.Fprintln(c.out, "The document for this conversation is no longer stored; new questions cannot be answered.")
	}
}

func (c *chatSession) history(ctx context.Context) {
	convs, err := c.app.rag.Conversations(ctx, c.sess.Username)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(convs) == 0 {
		fmt.Fprintln(c.out, "No previous conversations.")
		return
	}
	for _, conv := range convs {
		fmt.Fprintf(c.out, "%s  %s  (%s)\n", conv.Fingerprint, sidebarName(conv.Name), conv.LastActive.Local().Format("Jan 02, 03:04 PM"))
	}
}
