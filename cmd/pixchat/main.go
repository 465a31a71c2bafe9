package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cyrusliu/pixchat/internal/config"
	"github.com/cyrusliu/pixchat/internal/core"
	"github.com/cyrusliu/pixchat/internal/image"
	"github.com/cyrusliu/pixchat/internal/log"
	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/persist"
	"github.com/cyrusliu/pixchat/internal/router"
	"github.com/cyrusliu/pixchat/internal/session"
	"github.com/cyrusliu/pixchat/internal/store"
)

var version = "0.1.0"

func init() {
	// Load .env file if it exists (silent fail if not found)
	_ = godotenv.Load()

	// Initialize logging (enabled via PIXCHAT_DEBUG=1)
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var promptFlag string

var rootCmd = &cobra.Command{
	Use:   "pixchat [message]",
	Short: "Pixchat - multi-modal chat with image generation",
	Long: `Pixchat is a terminal client for multi-turn text and image chat.
It speaks the Gemini native protocol or any OpenAI-compatible
chat-completion endpoint, and remembers your session between runs.

Non-interactive mode:
  pixchat "your message"     Send one message and print the reply
  pixchat -p "prompt"        Same, via flag`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		msg := promptFlag
		if msg == "" && len(args) > 0 {
			msg = strings.Join(args, " ")
		}
		if msg != "" {
			if err := runOnce(engine, msg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		runInteractive(engine)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pixchat version %s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Message to send non-interactively")
	rootCmd.AddCommand(versionCmd)
}

func newEngine() (*core.Engine, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	dir, err := store.DefaultDir()
	if err != nil {
		return nil, err
	}
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return nil, err
	}

	return core.New(config.Static(settings), persist.NewManager(fs)), nil
}

// runOnce sends a single message and prints the reply, skipping session
// restore so piped usage stays stateless.
func runOnce(engine *core.Engine, msg string) error {
	engine.SetInput(msg)
	result := engine.Send(context.Background(), router.ModeGenerate)
	if result == nil {
		last := lastMessage(engine.Session())
		if last != nil && last.IsError {
			return fmt.Errorf("%s", strings.TrimPrefix(last.Content, message.ErrorPrefix))
		}
		return fmt.Errorf("nothing to send")
	}

	fmt.Println(result.Text)
	if result.Image != nil {
		path, err := saveImage(*result.Image)
		if err != nil {
			return err
		}
		fmt.Printf("[image saved to %s]\n", path)
	}
	return nil
}

func runInteractive(engine *core.Engine) {
	if engine.Restore() {
		s := engine.Session()
		fmt.Printf("Restored session with %d messages (saved %s).\n",
			len(s.Messages), s.SavedAt.Format("2006-01-02 15:04"))
	}

	fmt.Println("Type a message, or /help for commands. Ctrl+D exits.")

	mode := router.ModeGenerate
	shown := len(engine.Session().Messages)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		printPrompt(engine.Session(), mode)
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(engine, line, &mode); quit {
				return
			}
			shown = render(engine.Session(), shown)
			continue
		}

		engine.SetInput(line)
		result := engine.Send(context.Background(), mode)
		shown = render(engine.Session(), shown)
		if result != nil && len(result.Grounding) > 0 {
			fmt.Println("Sources:")
			for _, g := range result.Grounding {
				fmt.Printf("  %s  %s\n", g.Title, g.URI)
			}
		}
	}
}

func printPrompt(s session.Session, mode router.Mode) {
	tags := []string{string(mode)}
	if n := len(s.Uploads); n > 0 {
		tags = append(tags, fmt.Sprintf("%d attached", n))
	}
	if s.Options.Guidance {
		tags = append(tags, "guidance")
	}
	fmt.Printf("[%s]> ", strings.Join(tags, ", "))
}

// render prints every message appended since the last render and
// returns the new high-water mark.
func render(s session.Session, shown int) int {
	for _, m := range s.Messages[shown:] {
		switch m.Role {
		case message.RoleUser:
			continue
		case message.RoleSystem:
			fmt.Println(m.Content)
		case message.RoleAssistant:
			for _, seg := range m.Segments {
				if seg.Thought {
					fmt.Printf("(thinking) %s\n", seg.Text)
				}
			}
			if m.Content != "" {
				fmt.Println(m.Content)
			}
			if m.GeneratedImage != nil {
				if path, err := saveImage(*m.GeneratedImage); err == nil {
					fmt.Printf("[image saved to %s, %s]\n", path, image.FormatBytes(m.GeneratedImage.Size))
				} else {
					fmt.Printf("[could not save image: %v]\n", err)
				}
			}
		}
	}
	return len(s.Messages)
}

// runCommand handles one slash command. Returns true to exit the loop.
func runCommand(engine *core.Engine, line string, mode *router.Mode) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		printHelp()

	case "/mode":
		switch router.Mode(arg) {
		case router.ModeGenerate, router.ModeEdit, router.ModeSearch:
			*mode = router.Mode(arg)
			fmt.Printf("Mode set to %s.\n", arg)
		default:
			fmt.Println("Usage: /mode generate|edit|search")
		}

	case "/attach":
		if arg == "" {
			fmt.Println("Usage: /attach <path>")
			break
		}
		info, err := image.Load(arg)
		if err != nil {
			fmt.Printf("Cannot attach: %v\n", err)
			break
		}
		engine.AddUploads([]session.Upload{{
			ID:       message.NewID(),
			FileName: info.FileName,
			Image:    info.ToProviderData(),
		}})
		fmt.Printf("Attached %s (%s).\n", info.FileName, image.FormatBytes(info.Size))

	case "/uploads":
		s := engine.Session()
		if len(s.Uploads) == 0 {
			fmt.Println("No pending uploads.")
			break
		}
		for _, u := range s.Uploads {
			fmt.Printf("%s  %s (%s)\n", u.ID, u.FileName, image.FormatBytes(u.Image.Size))
		}

	case "/detach":
		if arg == "" {
			fmt.Println("Usage: /detach <upload-id>")
			break
		}
		engine.RemoveUpload(arg)

	case "/messages":
		for _, m := range engine.Session().Messages {
			text := m.Content
			if len(text) > 60 {
				text = text[:60] + "..."
			}
			fmt.Printf("%s  %-9s %s\n", m.ID, m.Role, text)
		}

	case "/delete":
		if arg == "" {
			fmt.Println("Usage: /delete <message-id>")
			break
		}
		engine.DeleteMessage(arg)
		fmt.Println("Deleted.")

	case "/retry":
		retry := lastRetry(engine.Session())
		if retry == nil {
			fmt.Println("Nothing to retry.")
			break
		}
		engine.Retry(context.Background(), *retry)

	case "/aspect":
		if arg == "" {
			fmt.Println("Usage: /aspect <ratio>   e.g. /aspect 16:9")
			break
		}
		engine.SetAspectRatio(arg)
		fmt.Printf("Aspect ratio set to %s.\n", arg)

	case "/size":
		if arg == "" {
			fmt.Println("Usage: /size <size>   e.g. /size 2K")
			break
		}
		engine.SetImageSize(arg)
		fmt.Printf("Image size set to %s.\n", arg)

	case "/guidance":
		on := !engine.Session().Options.Guidance
		engine.SetGuidance(on)
		if on {
			fmt.Println("Guidance on: the model's reasoning will be shown.")
		} else {
			fmt.Println("Guidance off.")
		}

	case "/reset":
		engine.Reset()
		fmt.Println("Session cleared.")

	default:
		fmt.Printf("Unknown command %s. Try /help.\n", cmd)
	}

	return false
}

// lastRetry finds the retry context of the most recent failed send.
func lastRetry(s session.Session) *message.RetryContext {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsError && s.Messages[i].Retry != nil {
			return s.Messages[i].Retry
		}
	}
	return nil
}

func lastMessage(s session.Session) *message.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// saveImage writes a generated image next to the working directory.
func saveImage(img message.ImageData) (string, error) {
	raw, err := image.Decode(img)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("pixchat-%s%s", message.NewID()[:8], image.Extension(img.MediaType))
	path := filepath.Join(".", name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func printHelp() {
	fmt.Println(`Commands:
  /mode generate|edit|search   Switch request mode
  /attach <path>               Attach an image to the next message
  /uploads                     List pending uploads
  /detach <upload-id>          Remove a pending upload
  /messages                    List messages with ids
  /delete <message-id>         Delete a message
  /retry                       Resend the last failed request
  /aspect <ratio>              Set aspect ratio (e.g. 16:9)
  /size <size>                 Set image size (e.g. 1K, 2K)
  /guidance                    Toggle reasoning display
  /reset                       Clear the session
  /quit                        Exit`)
}
