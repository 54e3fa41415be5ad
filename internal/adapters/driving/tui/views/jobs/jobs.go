// Package jobs provides the ingestion jobs view for the TUI.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/tome/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
)

// ErrNoIngestionService indicates that job listing is unavailable.
var ErrNoIngestionService = errors.New("ingestion service not available")

// jobResumed reports the outcome of a resume request.
type jobResumed struct {
	jobID string
	err   error
}

// View lists ingestion jobs and lets failed ones be resumed.
type View struct {
	styles    *styles.Styles
	ingestion driving.IngestionService
	ctx       context.Context

	jobs     []domain.Status
	selected int
	width    int
	height   int
	err      error
	notice   string
	loading  bool
}

// NewView creates a new jobs view.
func NewView(s *styles.Styles, ingestion driving.IngestionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, ingestion: ingestion, ctx: context.Background(), width: 80}
}

// WithContext sets the context service calls run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the job list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadJobs()
}

func (v *View) loadJobs() tea.Cmd {
	ingestion, ctx := v.ingestion, v.ctx
	return func() tea.Msg {
		if ingestion == nil {
			return messages.JobsLoaded{Err: ErrNoIngestionService}
		}
		jobs, err := ingestion.Jobs(ctx)
		return messages.JobsLoaded{Jobs: jobs, Err: err}
	}
}

func (v *View) resumeJob(jobID string) tea.Cmd {
	ingestion, ctx := v.ingestion, v.ctx
	return func() tea.Msg {
		if ingestion == nil {
			return jobResumed{jobID: jobID, err: ErrNoIngestionService}
		}
		return jobResumed{jobID: jobID, err: ingestion.Resume(ctx, jobID)}
	}
}

// Update handles messages for the jobs view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.JobsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.jobs = msg.Jobs
		v.err = nil
		if v.selected >= len(v.jobs) {
			v.selected = max(len(v.jobs)-1, 0)
		}
		return v, nil

	case jobResumed:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.notice = "Resumed " + msg.jobID
		return v, v.loadJobs()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(v.jobs)-1 {
			v.selected++
		}
	case "enter":
		if job := v.Selected(); job != nil {
			status := *job
			return v, func() tea.Msg { return messages.JobSelected{Status: status} }
		}
	case "R":
		if job := v.Selected(); job != nil && job.State == domain.JobFailed {
			return v, v.resumeJob(job.JobID)
		}
	case "r":
		v.loading = true
		v.notice = ""
		return v, v.loadJobs()
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
	}
	return v, nil
}

// View renders the jobs view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Ingestion jobs"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading jobs..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.jobs) == 0:
		b.WriteString(v.styles.Muted.Render("No jobs yet. Run 'tome ingest <file>' to add a book."))
	default:
		for i := range v.jobs {
			b.WriteString(v.renderJob(i, &v.jobs[i]))
			b.WriteString("\n")
		}
		if job := v.Selected(); job != nil {
			b.WriteString("\n")
			b.WriteString(v.renderDetail(job))
		}
	}

	if v.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[r] reload  [R] resume failed  [esc] back to search  [ctrl+c] quit"))
	return b.String()
}

// renderJob renders one job line: state, progress and id.
func (v *View) renderJob(index int, job *domain.Status) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}
	state := fmt.Sprintf("[%-11s]", job.State)
	progress := fmt.Sprintf("%d/%d chunks", job.Processed, job.Chunks)

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%s %-16s %s", indicator, state, progress, job.JobID))
	}
	stateStyle := v.styles.Subtitle
	switch job.State {
	case domain.JobFailed:
		stateStyle = v.styles.Error
	case domain.JobComplete:
		stateStyle = v.styles.Success
	default:
	}
	return v.styles.Normal.Render(indicator) + stateStyle.Render(state) + " " +
		v.styles.Normal.Render(fmt.Sprintf("%-16s ", progress)) + v.styles.Muted.Render(job.JobID)
}

func (v *View) renderDetail(job *domain.Status) string {
	lines := []string{v.styles.Muted.Render("Document: " + job.DocumentID)}
	if job.State == domain.JobFailed {
		lines = append(lines, v.styles.Error.Render(fmt.Sprintf("Failed at %s: %s", job.Stage, job.Error)))
	}
	for _, f := range job.Failures {
		lines = append(lines, v.styles.Warning.Render("skipped "+f.String()))
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Jobs returns the loaded jobs.
func (v *View) Jobs() []domain.Status {
	return v.jobs
}

// Selected returns the selected job, or nil if none.
func (v *View) Selected() *domain.Status {
	if v.selected < 0 || v.selected >= len(v.jobs) {
		return nil
	}
	return &v.jobs[v.selected]
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
