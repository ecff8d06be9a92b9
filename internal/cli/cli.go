// Package cli turns command-line arguments into a Parsed command.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbright/kamay/internal/lesson"
	"github.com/rbright/kamay/internal/practice"
)

type Command string

const (
	CommandPractice Command = "practice"
	CommandSelect   Command = "select"
	CommandDeselect Command = "deselect"
	CommandRetry    Command = "retry"
	CommandStatus   Command = "status"
	CommandStop     Command = "stop"
	CommandLessons  Command = "lessons"
	CommandQuiz     Command = "quiz"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// PracticeArgs are the options of `kamay practice`. Exactly one of Text and
// Lesson is set.
type PracticeArgs struct {
	Text     string
	Lesson   string
	Mode     practice.Mode
	Language string
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Help is the rendered help when ShowHelp is set.
	Help     string
	Practice PracticeArgs
	Item     string
	// Lesson is the quiz lesson id.
	Lesson   string
	Language string
}

// Parse runs args through the command tree. Errors are usage errors.
func Parse(args []string) (Parsed, error) {
	var parsed Parsed
	var out bytes.Buffer

	root := newRootCommand(&parsed)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	if parsed.Command == "" {
		parsed.Command = CommandHelp
	}
	if parsed.Command == CommandHelp {
		parsed.ShowHelp = true
		if out.Len() == 0 {
			_ = root.Help()
		}
		parsed.Help = out.String()
	}
	return parsed, nil
}

// HelpText renders the root help.
func HelpText() string {
	var out bytes.Buffer
	root := newRootCommand(&Parsed{})
	root.SetOut(&out)
	_ = root.Help()
	return out.String()
}

func newRootCommand(parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:           "kamay",
		Short:         "Sign language practice with live recognition",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				return nil
			}
			parsed.Command = CommandHelp
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&parsed.ConfigPath, "config", "c", "", "Config file path (default: $XDG_CONFIG_HOME/kamay/config.jsonc)")
	root.Flags().BoolVar(&showVersion, "version", false, "Show version")

	root.AddCommand(newPracticeCommand(parsed))
	root.AddCommand(&cobra.Command{
		Use:   "select <item>",
		Short: "Select a practice item by id or expected label; selecting it again deselects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := strings.TrimSpace(args[0])
			if item == "" {
				return errors.New("select needs a non-empty item")
			}
			parsed.Command = CommandSelect
			parsed.Item = item
			return nil
		},
	})
	root.AddCommand(newLessonsCommand(parsed))
	root.AddCommand(newQuizCommand(parsed))
	for _, c := range []struct {
		cmd   Command
		short string
	}{
		{CommandDeselect, "Clear the selected practice item"},
		{CommandRetry, "Restart the capture device after a device error"},
		{CommandStatus, "Print the running session's progress"},
		{CommandStop, "End the running practice session"},
		{CommandDevices, "List available microphones"},
		{CommandDoctor, "Run configuration and environment checks"},
		{CommandVersion, "Print version information"},
	} {
		root.AddCommand(simpleCommand(parsed, c.cmd, c.short))
	}
	return root
}

func simpleCommand(parsed *Parsed, command Command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(command),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed.Command = command
			return nil
		},
	}
}

func newPracticeCommand(parsed *Parsed) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "practice [TEXT...]",
		Short: "Start a practice session for TEXT or a catalog lesson",
		Example: `  kamay practice hello
  kamay practice --lesson lesson-1
  kamay practice --mode sequence thank you`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &parsed.Practice
			p.Text = strings.TrimSpace(strings.Join(args, " "))
			p.Lesson = strings.TrimSpace(p.Lesson)
			switch {
			case p.Text == "" && p.Lesson == "":
				return errors.New("practice needs TEXT or --lesson")
			case p.Text != "" && p.Lesson != "":
				return errors.New("practice takes TEXT or --lesson, not both")
			}

			if mode != "" {
				m, err := practice.ParseMode(mode)
				if err != nil {
					return err
				}
				p.Mode = m
			}
			if err := validateLanguage(p.Language); err != nil {
				return err
			}
			parsed.Command = CommandPractice
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&parsed.Practice.Lesson, "lesson", "l", "", "Practice the signs of a catalog lesson")
	flags.StringVarP(&mode, "mode", "m", "", "Recognition mode: static, sequence, or speech (default: the lesson's mode, else static)")
	flags.StringVar(&parsed.Practice.Language, "language", "", "Sign language: "+strings.Join(lesson.Languages, ", ")+" (default: config language)")
	return cmd
}

func newLessonsCommand(parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "Show catalog modules, lessons, and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateLanguage(parsed.Language); err != nil {
				return err
			}
			parsed.Command = CommandLessons
			return nil
		},
	}
	cmd.Flags().StringVar(&parsed.Language, "language", "", "Sign language catalog to show")
	return cmd
}

func newQuizCommand(parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quiz <lesson>",
		Short:   "Answer timed multiple-choice questions on a lesson's signs",
		Example: "  kamay quiz lesson-2 --language fsl",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("quiz needs a non-empty lesson id")
			}
			if err := validateLanguage(parsed.Language); err != nil {
				return err
			}
			parsed.Command = CommandQuiz
			parsed.Lesson = id
			return nil
		},
	}
	cmd.Flags().StringVar(&parsed.Language, "language", "", "Sign language catalog of the lesson")
	return cmd
}

func validateLanguage(lang string) error {
	if lang == "" || slices.Contains(lesson.Languages, lang) {
		return nil
	}
	return fmt.Errorf("unsupported language %q (want one of %s)", lang, strings.Join(lesson.Languages, ", "))
}
