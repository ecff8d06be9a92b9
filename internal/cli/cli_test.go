package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/kamay/internal/practice"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
	require.Contains(t, parsed.Help, "practice")
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/kamay.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/kamay.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "subcommand help", args: []string{"practice", "-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "version command", args: []string{"version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "short config flag", args: []string{"-c", "/tmp/cfg", "stop"}, wantCmd: CommandStop, wantPath: "/tmp/cfg"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "needs an argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unknown command"},
		{name: "deselect", args: []string{"deselect"}, wantCmd: CommandDeselect},
		{name: "retry", args: []string{"retry"}, wantCmd: CommandRetry},
		{name: "devices", args: []string{"devices"}, wantCmd: CommandDevices},
		{name: "select needs item", args: []string{"select"}, wantErr: "accepts 1 arg"},
		{name: "select blank item", args: []string{"select", " "}, wantErr: "non-empty item"},
		{name: "no completion command", args: []string{"completion"}, wantErr: "unknown command"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			if tc.wantHelp {
				require.NotEmpty(t, parsed.Help)
			}
		})
	}
}

func TestParseSelect(t *testing.T) {
	parsed, err := Parse([]string{"select", "b"})
	require.NoError(t, err)
	require.Equal(t, CommandSelect, parsed.Command)
	require.Equal(t, "b", parsed.Item)
}

func TestParsePracticeText(t *testing.T) {
	parsed, err := Parse([]string{"practice", "--mode", "sequence", "thank", "you", "--language", "fsl"})
	require.NoError(t, err)
	require.Equal(t, CommandPractice, parsed.Command)
	require.Equal(t, PracticeArgs{Text: "thank you", Mode: practice.ModeSequence, Language: "fsl"}, parsed.Practice)
}

func TestParsePracticeLesson(t *testing.T) {
	parsed, err := Parse([]string{"practice", "-l", "lesson-1"})
	require.NoError(t, err)
	require.Equal(t, "lesson-1", parsed.Practice.Lesson)
	require.Empty(t, parsed.Practice.Text)
	require.Empty(t, parsed.Practice.Mode)
}

func TestParsePracticeErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "nothing to practice", args: []string{"practice"}, wantErr: "needs TEXT or --lesson"},
		{name: "text and lesson", args: []string{"practice", "abc", "--lesson", "lesson-1"}, wantErr: "not both"},
		{name: "bad mode", args: []string{"practice", "abc", "--mode", "video"}, wantErr: "mode"},
		{name: "bad language", args: []string{"practice", "abc", "--language", "bsl"}, wantErr: "unsupported language"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseLessonsLanguage(t *testing.T) {
	parsed, err := Parse([]string{"lessons", "--language", "fsl"})
	require.NoError(t, err)
	require.Equal(t, CommandLessons, parsed.Command)
	require.Equal(t, "fsl", parsed.Language)

	_, err = Parse([]string{"lessons", "--language", "xx"})
	require.Error(t, err)
}

func TestParseQuiz(t *testing.T) {
	parsed, err := Parse([]string{"quiz", "lesson-2", "--language", "fsl"})
	require.NoError(t, err)
	require.Equal(t, CommandQuiz, parsed.Command)
	require.Equal(t, "lesson-2", parsed.Lesson)
	require.Equal(t, "fsl", parsed.Language)

	_, err = Parse([]string{"quiz"})
	require.ErrorContains(t, err, "accepts 1 arg")
	_, err = Parse([]string{"quiz", " "})
	require.ErrorContains(t, err, "non-empty lesson")
	_, err = Parse([]string{"quiz", "lesson-1", "--language", "xx"})
	require.ErrorContains(t, err, "unsupported language")
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText()
	for _, want := range []string{"practice", "select", "retry", "stop", "lessons", "quiz", "doctor", "--config"} {
		require.Contains(t, text, want)
	}
	require.NotContains(t, text, "completion")
}
