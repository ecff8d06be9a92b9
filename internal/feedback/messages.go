package feedback

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish  locale = "en"
	localeFilipino locale = "fil"
)

type messages struct {
	prompt    string
	correct   string
	incorrect string
	expected  string
	complete  string
	errorText string
	retryHint string
}

func messagesFromEnv() messages {
	return localizedMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "fil") || strings.HasPrefix(raw, "tl") {
		return localeFilipino
	}
	return localeEnglish
}

func localizedMessages(tag locale) messages {
	switch tag {
	case localeFilipino:
		return messages{
			prompt:    "Isenyas",
			correct:   "Tama!",
			incorrect: "Subukan muli",
			expected:  "inaasahan",
			complete:  "Tapos na ang pagsasanay",
			errorText: "Nabigo ang pagtukoy",
			retryHint: "Patakbuhin ang `kamay retry` kapag handa na ang device.",
		}
	default:
		return messages{
			prompt:    "Sign",
			correct:   "Correct!",
			incorrect: "Try again",
			expected:  "expected",
			complete:  "Practice complete",
			errorText: "Detection failed",
			retryHint: "Run `kamay retry` once the device is available.",
		}
	}
}
