// ABOUTME: Admin CLI for assistant lifecycle management
// ABOUTME: Creates, inspects, updates, and deletes assistants via the API

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/wspjoy2011/smart-tg-bot/internal/assets"
	"github.com/wspjoy2011/smart-tg-bot/internal/openai"
)

const banner = `
                _     _              _              _           _
  __ _ ___ ___(_)___| |_ __ _ _ __ | |_        __ _  __| |_ __ ___ (_)_ __
 / _' / __/ __| / __| __/ _' | '_ \| __|_____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| \__ \__ \ \__ \ || (_| | | | | ||_____| (_| | (_| | | | | | | | | | |
 \__,_|___/___/_|___/\__\__,_|_| |_|\__|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	if apiKey == "" {
		color.Red("Error: OPENAI_API_KEY is not set\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := newClient(apiKey, model)

	var err error
	switch cmd {
	case "list":
		err = cmdList(ctx, client)
	case "show":
		err = cmdShow(ctx, client, args)
	case "create":
		err = cmdCreate(ctx, client, args)
	case "update":
		err = cmdUpdate(ctx, client, args)
	case "delete":
		err = cmdDelete(ctx, client, args)
	case "prompts":
		err = cmdPrompts()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: assistant-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  list                              List assistants")
	fmt.Println("  show <id>                         Show one assistant, instructions included")
	fmt.Println("  create --name NAME --prompt P     Create an assistant")
	fmt.Println("  update <id> --prompt P            Replace an assistant's instructions")
	fmt.Println("  delete <id>                       Delete an assistant")
	fmt.Println("  prompts                           List bundled instruction prompts")
	fmt.Println()
	yellow.Println("The --prompt value is a file path, or the name of a bundled prompt")
	yellow.Println("(see 'assistant-admin prompts').")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  OPENAI_API_KEY    API key (required)")
	fmt.Println("  OPENAI_MODEL      Model for new assistants (default: gpt-4o-mini)")
	fmt.Println("  OPENAI_BASE_URL   API endpoint override")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export OPENAI_API_KEY=\"sk-...\"")
	fmt.Println("  assistant-admin create --name 'Fact Assistant' --prompt fact_assistant")
	fmt.Println("  assistant-admin update asst_abc123 --prompt ./instructions.txt")
	fmt.Println()
}

// newClient builds an API client with logging silenced; the CLI prints its
// own output.
func newClient(apiKey, model string) *openai.Client {
	opts := []openai.Option{
		openai.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(apiKey, model, opts...)
}

func cmdList(ctx context.Context, client *openai.Client) error {
	assistants, err := client.ListAssistants(ctx, 100)
	if err != nil {
		return err
	}

	if len(assistants) == 0 {
		fmt.Println("No assistants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tCREATED")
	for _, a := range assistants {
		created := time.Unix(a.CreatedAt, 0).UTC().Format("2006-01-02")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Model, created)
	}
	return w.Flush()
}

func cmdShow(ctx context.Context, client *openai.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: assistant-admin show <id>")
	}

	a, err := client.GetAssistant(ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Assistant")
	cyan.Println("---------")
	fmt.Printf("ID:      %s\n", a.ID)
	fmt.Printf("Name:    %s\n", a.Name)
	fmt.Printf("Model:   %s\n", a.Model)
	fmt.Printf("Created: %s\n", time.Unix(a.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Println()
	cyan.Println("Instructions")
	cyan.Println("------------")
	fmt.Println(a.Instructions)
	return nil
}

func cmdCreate(ctx context.Context, client *openai.Client, args []string) error {
	name, promptRef, err := parseCreateFlags(args)
	if err != nil {
		return err
	}

	instructions, err := loadPrompt(promptRef)
	if err != nil {
		return err
	}

	a, err := client.CreateAssistant(ctx, name, instructions)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created assistant: %s\n", a.ID)
	fmt.Printf("  Name:  %s\n", a.Name)
	fmt.Printf("  Model: %s\n", a.Model)
	return nil
}

func cmdUpdate(ctx context.Context, client *openai.Client, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: assistant-admin update <id> --prompt P")
	}
	id := args[0]

	promptRef, err := parseFlagValue(args[1:], "--prompt")
	if err != nil {
		return err
	}
	if promptRef == "" {
		return fmt.Errorf("--prompt flag is required")
	}

	instructions, err := loadPrompt(promptRef)
	if err != nil {
		return err
	}

	if _, err := client.UpdateAssistant(ctx, id, instructions); err != nil {
		return err
	}

	color.Green("  ✓ Updated assistant: %s\n", id)
	return nil
}

func cmdDelete(ctx context.Context, client *openai.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: assistant-admin delete <id>")
	}

	if err := client.DeleteAssistant(ctx, args[0]); err != nil {
		return err
	}

	color.Green("  ✓ Deleted assistant: %s\n", args[0])
	return nil
}

func cmdPrompts() error {
	names, err := assets.PromptNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// parseCreateFlags parses --name and --prompt, in either
// "--flag value" or "--flag=value" form.
func parseCreateFlags(args []string) (name, promptRef string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--name":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--name requires a value")
			}
			name = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			name = strings.TrimPrefix(arg, "--name=")
		case arg == "--prompt":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--prompt requires a value")
			}
			promptRef = args[i+1]
			i++
		case strings.HasPrefix(arg, "--prompt="):
			promptRef = strings.TrimPrefix(arg, "--prompt=")
		default:
			return "", "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("--name flag is required")
	}
	if promptRef == "" {
		return "", "", fmt.Errorf("--prompt flag is required")
	}
	return name, promptRef, nil
}

func parseFlagValue(args []string, flag string) (string, error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == flag:
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", flag)
			}
			return args[i+1], nil
		case strings.HasPrefix(arg, flag+"="):
			return strings.TrimPrefix(arg, flag+"="), nil
		default:
			return "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	return "", nil
}

// loadPrompt resolves an instruction prompt: an existing file path wins,
// otherwise the name is looked up among the bundled prompts.
func loadPrompt(ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		data, err := os.ReadFile(ref)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}

	prompt, err := assets.Prompt(ref)
	if err != nil {
		return "", fmt.Errorf("%q is neither a file nor a bundled prompt", ref)
	}
	return prompt, nil
}
