package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/importer"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/snapshot"
	"github.com/schardosin/bpmnbot/pkg/transcript"
	"github.com/schardosin/bpmnbot/pkg/ui"
	"go.uber.org/zap"
)

// ConsoleConfig contains configuration for the console launcher
type ConsoleConfig struct {
	Bot      *chatbot.Bot
	Language string
	APIKey   string
	In       io.Reader
	Out      io.Writer
	// Interactive enables the spinner, markdown rendering and key prompts.
	Interactive bool
	// OpenViewer opens the generated diagram in a browser window.
	OpenViewer bool
	Importer   *importer.Importer
	Logger     *zap.Logger
}

const consoleSessionID = "console"

// console holds the state of one terminal conversation.
type console struct {
	cfg     *ConsoleConfig
	conv    *conversation.Conversation
	catalog *prompts.Catalog
	apiKey  string
	out     io.Writer
}

// RunConsole runs a conversation in the terminal until the diagram is
// generated, the input ends or ctx is cancelled.
func RunConsole(ctx context.Context, cfg *ConsoleConfig) error {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Importer == nil {
		cfg.Importer = importer.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	lang := cfg.Language
	if lang == "" {
		lang = cfg.Bot.Config().General.Language
	}

	c := &console{
		cfg:     cfg,
		conv:    conversation.New(lang, cfg.Bot.Config().Chat.Keyword),
		catalog: prompts.For(lang),
		apiKey:  cfg.APIKey,
		out:     cfg.Out,
	}

	for _, msg := range c.conv.Messages {
		c.printBot(msg.Text)
	}
	fmt.Fprintln(c.out, ui.Muted(fmt.Sprintf("/import <file|url>  /save <file>  /quit  ·  %q", cfg.Bot.Config().Chat.Keyword)))

	reader := bufio.NewReader(cfg.In)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(c.out, "\n%s ", ui.UserLabel(c.catalog.UserLabel))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				fmt.Fprint(c.out, ui.RenderErrorBox(c.catalog.ErrorTitle, err.Error(), "", ""))
			}
			if quit {
				return nil
			}
			continue
		}

		done, err := c.turn(ctx, line)
		if err != nil && !errors.Is(err, chatbot.ErrMissingAPIKey) && !errors.Is(err, chatbot.ErrEmptyContext) {
			cfg.Logger.Debug("turn failed", zap.Error(err))
		}
		if done {
			return nil
		}
	}
}

// turn runs one user input and reports whether the diagram was generated.
func (c *console) turn(ctx context.Context, input string) (bool, error) {
	reply, err := c.run(ctx, input)
	if errors.Is(err, chatbot.ErrMissingAPIKey) && c.cfg.Interactive {
		fmt.Fprintln(c.out, ui.RenderNotice(reply.Notice))
		key, kerr := ui.ReadSecret("API KEY")
		if kerr != nil || strings.TrimSpace(key) == "" {
			return false, err
		}
		c.apiKey = strings.TrimSpace(key)
		reply, err = c.run(ctx, input)
	}

	if reply != nil && reply.Notice != "" {
		if err != nil && !errors.Is(err, chatbot.ErrMissingAPIKey) && !errors.Is(err, chatbot.ErrEmptyContext) {
			fmt.Fprint(c.out, ui.RenderErrorBox(c.catalog.ErrorTitle, reply.Notice, "", ""))
		} else {
			fmt.Fprintln(c.out, ui.RenderNotice(reply.Notice))
		}
	} else if err != nil {
		fmt.Fprint(c.out, ui.RenderErrorBox(c.catalog.ErrorTitle, err.Error(), "", ""))
	}
	if err != nil || reply == nil {
		return false, err
	}

	if reply.Kind == chatbot.KindChat {
		if c.cfg.Interactive {
			if last := reply.Messages[len(reply.Messages)-1]; last.Role == conversation.RoleChatbot {
				c.printBot(last.Text)
			}
		} else {
			fmt.Fprintln(c.out)
		}
		return false, nil
	}

	c.printResult(ctx, reply)
	return true, nil
}

// run executes the turn. Interactive terminals get a spinner and a rendered
// reply; otherwise chunks are written as they arrive.
func (c *console) run(ctx context.Context, input string) (*chatbot.Reply, error) {
	if !c.cfg.Interactive {
		started := false
		return c.cfg.Bot.Stream(ctx, consoleSessionID, c.conv, input, c.apiKey, func(chunk string) {
			if !started {
				fmt.Fprintf(c.out, "\n%s ", ui.BotLabel(c.catalog.BotLabel))
				started = true
			}
			fmt.Fprint(c.out, chunk)
		})
	}

	var reply *chatbot.Reply
	text := c.catalog.Thinking
	if conversation.IsTermination(input, c.cfg.Bot.Config().Chat.Keyword) {
		text = c.catalog.Generating
	}
	err := ui.RunWithSpinner(text, true, func() error {
		var err error
		reply, err = c.cfg.Bot.Turn(ctx, consoleSessionID, c.conv, input, c.apiKey)
		return err
	})
	return reply, err
}

func (c *console) printBot(text string) {
	if c.cfg.Interactive {
		fmt.Fprintf(c.out, "\n%s\n%s", ui.BotLabel(c.catalog.BotLabel), ui.SmartRender(text))
		return
	}
	fmt.Fprintf(c.out, "\n%s %s\n", ui.BotLabel(c.catalog.BotLabel), text)
}

func (c *console) printResult(ctx context.Context, reply *chatbot.Reply) {
	res := reply.Result
	for _, msg := range reply.Messages {
		c.printBot(msg.Text)
	}

	if c.cfg.Interactive {
		fmt.Fprint(c.out, ui.SmartRender(res.XML))
	} else {
		fmt.Fprintln(c.out, res.XML)
	}
	fmt.Fprint(c.out, ui.RenderReport(res.Path, res.Report))

	maxAttempts := c.cfg.Bot.Config().Generation.MaxAttempts
	if res.Attempts > 1 {
		fmt.Fprintln(c.out, ui.RenderAttemptsBadge(res.Attempts, maxAttempts, c.catalog.AttemptsNote))
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(c.out, ui.RenderWarning(w))
	}

	htmlPath := res.HTMLPath
	if htmlPath == "" {
		var err error
		htmlPath, err = c.cfg.Bot.Writer().WriteHTML(consoleSessionID, res.ViewerHTML)
		if err != nil {
			c.cfg.Logger.Warn("failed to write viewer page", zap.Error(err))
		}
	}
	if htmlPath != "" {
		fmt.Fprintln(c.out, ui.Muted(htmlPath))
	}

	// the window stays open until ctx is cancelled
	if c.cfg.OpenViewer && snapshot.Available("") {
		fmt.Fprintln(c.out, ui.Muted("Ctrl+C"))
		if err := snapshot.Show(ctx, res.ViewerHTML, snapshot.Options{}); err != nil && ctx.Err() == nil {
			c.cfg.Logger.Warn("failed to open viewer", zap.Error(err))
		}
	}
}

// command handles the slash commands of the console.
func (c *console) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/import":
		if arg == "" {
			return false, errors.New("usage: /import <file|url>")
		}
		var doc *importer.Document
		var err error
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			doc, err = c.cfg.Importer.FromURL(ctx, arg)
		} else {
			doc, err = importer.FromFile(arg)
		}
		if err != nil {
			return false, err
		}
		c.conv.AppendDocument(doc.Source, doc.Text)
		fmt.Fprintln(c.out, ui.RenderNotice(fmt.Sprintf(c.catalog.DocumentImported, doc.Source)))
		return false, nil

	case "/save":
		if arg == "" {
			return false, errors.New("usage: /save <file.md|file.html|file.pdf>")
		}
		format, err := transcript.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(arg)), "."))
		if err != nil {
			return false, err
		}
		data, err := transcript.Render(transcript.Input{Conversation: c.conv}, format)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(arg, data, 0644); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, ui.Muted(arg))
		return false, nil
	}

	return false, fmt.Errorf("unknown command %s", name)
}
