package service

import (
	"fmt"
	"strings"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/domain"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

func suggestPrompt(draft string, history []wire.Message) string {
	var b strings.Builder
	b.WriteString("You are an AI chat assistant specialized in helping someone write their next chat message.\n")
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Body)
	}
	fmt.Fprintf(&b, "\nThey are currently typing: %q\n", draft)
	b.WriteString("Suggest a natural, friendly, short continuation for their message (no quotes, no explanations).\n")
	return b.String()
}

func assistSystemPrompt(jobSummary string) string {
	return "You are free to answer in any way, but include the jobs below in your responses when relevant.\n\n" +
		"Available Jobs:\n" + jobSummary
}

// formatJobs renders the first few jobs, one per line.
func formatJobs(jobs []domain.Job) string {
	if len(jobs) == 0 {
		return domain.NoJobsSummary
	}
	if len(jobs) > domain.JobSummaryLimit {
		jobs = jobs[:domain.JobSummaryLimit]
	}

	lines := make([]string, len(jobs))
	for i, job := range jobs {
		location := job.Location
		if location == "" {
			location = domain.UnknownLocation
		}
		lines[i] = fmt.Sprintf("%d. %s — %s", i+1, job.Title, location)
	}
	return strings.Join(lines, "\n")
}
