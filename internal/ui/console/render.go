package console

import (
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	boldPattern = regexp.MustCompile(`(?s)<b>(.*?)</b>`)
	tagPattern  = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	bold        = lipgloss.NewStyle().Bold(true)
)

// renderHTML turns the Telegram HTML subset the bot emits into terminal
// text: bold spans are styled and every other tag is dropped.
func renderHTML(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range boldPattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(plain(s[last:loc[0]]))
		b.WriteString(bold.Render(plain(s[loc[2]:loc[3]])))
		last = loc[1]
	}
	b.WriteString(plain(s[last:]))
	return b.String()
}

func plain(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}
