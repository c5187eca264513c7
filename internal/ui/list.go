package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/tasks"
)

var _ list.Item = pageItem{}

// pageItem wraps [tasks.PageReport] to implement [list.Item].
type pageItem struct {
	report tasks.PageReport
}

func (i pageItem) FilterValue() string { return fmt.Sprint(i.report.Page) }
func (i pageItem) Title() string {
	return fmt.Sprintf("Page %d  %s", i.report.Page, styles.State(i.report.State).Render(i.report.State.String()))
}

func (i pageItem) Description() string {
	var action string
	switch i.report.Outcome {
	case models.OutcomeSkipped:
		action = "already migrated"
	case models.OutcomeDownloaded:
		action = "download and upload"
	case models.OutcomeResumed:
		action = "resume from disk"
	default:
		action = string(i.report.Outcome)
	}
	if i.report.Photos > 0 {
		return fmt.Sprintf("%s • %d photos staged", action, i.report.Photos)
	}
	return action
}
