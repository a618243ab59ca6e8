package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/xpanvictor/civicguru/internal/types"
)

// ExportFile is a downloadable plain-text transcript.
type ExportFile struct {
	Name    string `json:"name" example:"civic-sense-chat-2025-01-26.txt"`
	Content string `json:"content"`
}

// ExportTranscript renders one "[HH:MM] User: text" block per message,
// separated by blank lines. The file is named after the export date (UTC).
func ExportTranscript(msgs []types.Message, at time.Time, loc *time.Location) ExportFile {
	if loc == nil {
		loc = time.Local
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := "User"
		if m.Speaker == types.ASSISTANT {
			who = "Guru"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Timestamp.In(loc).Format("15:04"), who, m.Text))
	}
	return ExportFile{
		Name:    "civic-sense-chat-" + at.UTC().Format("2006-01-02") + ".txt",
		Content: strings.Join(lines, "\n\n"),
	}
}
