package tasks

import (
	"fmt"

	"github.com/desertthunder/pxm/internal/stage"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ComputePages Phase = iota
	InspectPage
	DownloadPage
	UploadPage
	RetirePage
	SkipPage
	Complete
)

func (p Phase) String() string {
	switch p {
	case ComputePages:
		return "compute_pages"
	case InspectPage:
		return "inspect_page"
	case DownloadPage:
		return "download_page"
	case UploadPage:
		return "upload_page"
	case RetirePage:
		return "retire_page"
	case SkipPage:
		return "skip_page"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func computePagesUpdate(total, pages int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ComputePages,
		Step:    0,
		Total:   pages,
		Message: fmt.Sprintf("Found %d photos in %d pages", total, pages),
	}
}

func processingPageUpdate(step, total, page, pages int, state stage.PageState) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InspectPage,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Processing page %d of %d (%s)", page, pages, state),
		Data:    page,
	}
}

func downloadPageUpdate(step, total, page int, resumed bool) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] Downloading page %d...", step, total, page)
	if resumed {
		msg = fmt.Sprintf("[%d/%d] Resuming download of page %d...", step, total, page)
	}
	return ProgressUpdate{
		Phase:   DownloadPage,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    page,
	}
}

func uploadPageUpdate(step, total, page, photos int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadPage,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Uploading %d photos from page %d...", step, total, photos, page),
		Data:    page,
	}
}

func retirePageUpdate(step, total, page, photos int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RetirePage,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ page %d (%d photos)", step, total, page, photos),
		Data:    page,
	}
}

func skipPageUpdate(step, total, page int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipPage,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] page %d already migrated", step, total, page),
		Data:    page,
	}
}

func completeUpdate(result *MigrationResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    result.PagesMigrated + result.PagesSkipped,
		Total:   len(result.Pages),
		Message: fmt.Sprintf("Migrated %d pages (%d photos), skipped %d", result.PagesMigrated, result.PhotosUploaded, result.PagesSkipped),
		Data:    result,
	}
}
