package terminal

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var escapeSequence = regexp.MustCompile(
	// CSI: ESC [ params intermediates final
	`\x1b\[[0-?]*[ -/]*[@-~]` +
		// OSC: ESC ] ... terminated by BEL or ESC \
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)` +
		// charset designation: ESC ( B and friends
		`|\x1b[()*+][0-9A-Za-z]` +
		// two-byte escapes: ESC = , ESC > , ESC M ...
		`|\x1b[@-Z\\-_=>]`,
)

// promptTerminators are the last characters of common shell prompts.
const promptTerminators = "$#>%"

// maxPromptRunes bounds what counts as a prompt line.
const maxPromptRunes = 64

// Normalize turns raw shell output into clean text. It strips terminal
// escape sequences and control characters, drops the echoed command line,
// drops blank lines and drops trailing prompt lines. It is a best-effort
// cleanup, not a terminal emulator, and it is idempotent:
// Normalize([]byte(Normalize(raw, cmd)), cmd) == Normalize(raw, cmd).
func Normalize(raw []byte, echo string) string {
	text := stripControls(escapeSequence.ReplaceAllString(string(raw), ""))
	lines := strings.Split(text, "\n")

	lines = dropEcho(lines, strings.TrimSpace(echo))

	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}

	for len(kept) > 0 && looksLikePrompt(kept[len(kept)-1]) {
		kept = kept[:len(kept)-1]
	}

	return strings.Join(kept, "\n")
}

// stripControls removes ESC bytes that survived the pattern, carriage
// returns, bells and the remaining C0 controls except newline and tab.
func stripControls(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		case r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
}

// dropEcho removes leading lines that reproduce the command, skipping
// blank lines before them. A line is an echo when it is the command itself
// or a prompt followed by the command; output that merely mentions the
// command is kept.
func dropEcho(lines []string, echo string) []string {
	if echo == "" {
		return lines
	}
	for len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first != "" && !isEcho(first, echo) {
			break
		}
		lines = lines[1:]
	}
	return lines
}

func isEcho(line, echo string) bool {
	if line == echo {
		return true
	}
	prefix, ok := strings.CutSuffix(line, " "+echo)
	if !ok {
		return false
	}
	prefix = strings.TrimRight(prefix, " ")
	return prefix != "" && strings.ContainsRune(promptTerminators, rune(prefix[len(prefix)-1]))
}

func looksLikePrompt(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxPromptRunes {
		return false
	}
	return strings.ContainsRune(promptTerminators, rune(trimmed[len(trimmed)-1]))
}
