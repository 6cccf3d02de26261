package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new prompt or a new version of an existing one",
	Long: `Register prompt content under a name. Registering an existing name
appends a new version and makes it current; earlier versions stay available
for rollback.

Examples:
  promptreg register summarize --content "Summarize {{.document}} in 3 bullets."
  promptreg register summarize --file prompt.txt --author alice --message "tighter wording"
  promptreg register summarize --content "..." --tags nlp,production`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var (
	registerContent string
	registerFile    string
	registerAuthor  string
	registerMessage string
	registerTags    string
)

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVarP(&registerContent, "content", "c", "", "Prompt content")
	registerCmd.Flags().StringVarP(&registerFile, "file", "f", "", "Read prompt content from a file")
	registerCmd.Flags().StringVarP(&registerAuthor, "author", "a", "", "Author of this version")
	registerCmd.Flags().StringVarP(&registerMessage, "message", "m", "", "Change message for this version")
	registerCmd.Flags().StringVarP(&registerTags, "tags", "t", "", "Comma-separated tags")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]

	content := registerContent
	if registerFile != "" {
		if content != "" {
			return fmt.Errorf("--content and --file are mutually exclusive")
		}
		data, err := os.ReadFile(registerFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", registerFile, err)
		}
		content = string(data)
	}
	if content == "" {
		return fmt.Errorf("prompt content is required, use --content or --file")
	}

	var tags []string
	if registerTags != "" {
		for _, t := range strings.Split(registerTags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	version, err := app.Service.Register(ctx, name, content,
		optionalString(registerAuthor), optionalString(registerMessage), tags)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s version %d\n", name, version.Version)
	return nil
}
