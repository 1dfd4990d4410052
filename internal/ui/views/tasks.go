package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/models"
	"github.com/tgienger/taskdesk/internal/tracker"
	"github.com/tgienger/taskdesk/internal/ui/keys"
	"github.com/tgienger/taskdesk/internal/ui/styles"
)

// Fields of the new task form, in tab order.
const (
	fieldTitle = iota
	fieldDesc
	fieldPriority
	fieldCustomer
	fieldExecutor
	fieldTags
	fieldSave
	fieldCount
)

// TaskListView shows every task with its status, priority and tags.
type TaskListView struct {
	ctx    context.Context
	svc    *tracker.Service
	tasks  []models.Task
	styles *styles.Styles
	keys   keys.KeyMap
	now    func() time.Time

	width  int
	height int

	cursor      int
	scrollY     int
	searching   bool
	searchInput textinput.Model
	err         error

	// New task form
	editing      bool
	editFocusIdx int
	editTitle    textinput.Model
	editDesc     textinput.Model
	editTags     textinput.Model
	editPriority models.Priority
	customers    []models.User
	executors    []models.User
	customerIdx  int
	executorIdx  int

	confirmingDelete bool
	deleteTarget     models.Task
}

func NewTaskListView(ctx context.Context, svc *tracker.Service) *TaskListView {
	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.CharLimit = 100

	editTitle := textinput.New()
	editTitle.Placeholder = "Task title"
	editTitle.CharLimit = 200

	editDesc := textinput.New()
	editDesc.Placeholder = "Description"
	editDesc.CharLimit = 1000

	editTags := textinput.New()
	editTags.Placeholder = "comma separated, e.g. billing, urgent"
	editTags.CharLimit = 300

	return &TaskListView{
		ctx:          ctx,
		svc:          svc,
		styles:       styles.NewStyles(),
		keys:         keys.DefaultKeyMap(),
		now:          time.Now,
		searchInput:  search,
		editTitle:    editTitle,
		editDesc:     editDesc,
		editTags:     editTags,
		editPriority: models.PriorityMedium,
	}
}

type tasksLoadedMsg struct {
	tasks []models.Task
}

type assigneesLoadedMsg struct {
	customers []models.User
	executors []models.User
}

func (v *TaskListView) Init() tea.Cmd {
	return tea.Batch(v.loadTasks(), v.loadAssignees)
}

// loadTasks captures the search query on the update loop. The command it
// returns runs on its own goroutine and must not read view state.
func (v *TaskListView) loadTasks() tea.Cmd {
	filter := db.TaskFilter{Search: strings.TrimSpace(v.searchInput.Value())}
	return func() tea.Msg { return v.fetchTasks(filter) }
}

func (v *TaskListView) fetchTasks(filter db.TaskFilter) tea.Msg {
	tasks, err := v.svc.Tasks(v.ctx, filter)
	if err != nil {
		return ErrMsg{Err: err}
	}
	return tasksLoadedMsg{tasks: tasks}
}

func (v *TaskListView) loadAssignees() tea.Msg {
	customers, executors, err := v.svc.UsersByRole(v.ctx)
	if err != nil {
		return ErrMsg{Err: err}
	}
	return assigneesLoadedMsg{customers: customers, executors: executors}
}

// Editing reports whether the view is capturing keystrokes for a form.
func (v *TaskListView) Editing() bool {
	return v.editing || v.searching || v.confirmingDelete
}

func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		inputWidth := clamp(styles.ContentWidth(v.width)-10, 20, 50)
		v.editTitle.Width = inputWidth
		v.editDesc.Width = inputWidth
		v.editTags.Width = inputWidth
		return v, nil

	case tasksLoadedMsg:
		v.tasks = msg.tasks
		v.err = nil
		if v.cursor >= len(v.tasks) {
			v.cursor = max(0, len(v.tasks)-1)
		}
		v.ensureVisible()
		return v, nil

	case assigneesLoadedMsg:
		v.customers = msg.customers
		v.executors = msg.executors
		v.customerIdx = min(v.customerIdx, max(0, len(v.customers)-1))
		v.executorIdx = min(v.executorIdx, max(0, len(v.executors)-1))
		return v, nil

	case UsersChanged:
		return v, v.loadAssignees

	case ErrMsg:
		v.err = msg.Err
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.confirmingDelete:
			return v.updateConfirmDelete(msg)
		case v.editing:
			return v.updateEditing(msg)
		case v.searching:
			return v.updateSearching(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
	case key.Matches(msg, v.keys.Refresh):
		return v, tea.Batch(v.loadTasks(), v.loadAssignees)
	case msg.String() == "/":
		v.searching = true
		v.searchInput.Focus()
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Back):
		if v.searchInput.Value() != "" {
			v.searchInput.Reset()
			return v, v.loadTasks()
		}
	case key.Matches(msg, v.keys.New):
		v.startNewTask()
		return v, textinput.Blink
	case key.Matches(msg, v.keys.Status):
		if task, ok := v.selected(); ok {
			return v, v.apply(func() (models.Task, error) {
				return v.svc.SetStatus(v.ctx, task.ID, task.Status.Next())
			})
		}
	case key.Matches(msg, v.keys.Priority):
		if task, ok := v.selected(); ok {
			return v, v.apply(func() (models.Task, error) {
				return v.svc.SetPriority(v.ctx, task.ID, task.Priority.Next())
			})
		}
	case key.Matches(msg, v.keys.Delete):
		if task, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTarget = task
		}
	}
	return v, nil
}

// apply runs a task mutation and reloads the list when it succeeds.
func (v *TaskListView) apply(fn func() (models.Task, error)) tea.Cmd {
	reload := v.loadTasks()
	return func() tea.Msg {
		if _, err := fn(); err != nil {
			return ErrMsg{Err: err}
		}
		return reload()
	}
}

func (v *TaskListView) selected() (models.Task, bool) {
	if v.cursor < 0 || v.cursor >= len(v.tasks) {
		return models.Task{}, false
	}
	return v.tasks[v.cursor], true
}

func (v *TaskListView) updateSearching(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		v.searching = false
		v.searchInput.Blur()
		v.cursor, v.scrollY = 0, 0
		return v, v.loadTasks()
	case "esc":
		v.searching = false
		v.searchInput.Blur()
		v.searchInput.Reset()
		return v, v.loadTasks()
	}
	var cmd tea.Cmd
	v.searchInput, cmd = v.searchInput.Update(msg)
	return v, cmd
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		id := v.deleteTarget.ID
		reload := v.loadTasks()
		return v, func() tea.Msg {
			if err := v.svc.DeleteTask(v.ctx, id); err != nil {
				return ErrMsg{Err: err}
			}
			return reload()
		}
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

func (v *TaskListView) startNewTask() {
	v.editing = true
	v.editFocusIdx = fieldTitle
	v.editTitle.Reset()
	v.editDesc.Reset()
	v.editTags.Reset()
	v.editPriority = models.PriorityMedium
	v.err = nil
	v.updateEditFocus()
}

func (v *TaskListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil
	case msg.String() == "ctrl+s":
		return v, v.saveTask()
	case msg.String() == "shift+tab":
		v.editFocusIdx = (v.editFocusIdx + fieldCount - 1) % fieldCount
		v.updateEditFocus()
		return v, nil
	case key.Matches(msg, v.keys.Tab):
		v.editFocusIdx = (v.editFocusIdx + 1) % fieldCount
		v.updateEditFocus()
		return v, nil
	case key.Matches(msg, v.keys.Enter):
		if v.editFocusIdx == fieldSave {
			return v, v.saveTask()
		}
		v.editFocusIdx++
		v.updateEditFocus()
		return v, nil
	}

	step := 0
	switch msg.String() {
	case "left":
		step = -1
	case "right", " ":
		step = 1
	}
	if step != 0 {
		switch v.editFocusIdx {
		case fieldPriority:
			v.editPriority = models.Priority(cycle(int(v.editPriority), step, int(models.PriorityCritical)+1))
			return v, nil
		case fieldCustomer:
			v.customerIdx = cycle(v.customerIdx, step, len(v.customers))
			return v, nil
		case fieldExecutor:
			v.executorIdx = cycle(v.executorIdx, step, len(v.executors))
			return v, nil
		}
	}

	var cmd tea.Cmd
	switch v.editFocusIdx {
	case fieldTitle:
		v.editTitle, cmd = v.editTitle.Update(msg)
	case fieldDesc:
		v.editDesc, cmd = v.editDesc.Update(msg)
	case fieldTags:
		v.editTags, cmd = v.editTags.Update(msg)
	}
	return v, cmd
}

func cycle(idx, step, n int) int {
	if n == 0 {
		return 0
	}
	return (idx + step + n) % n
}

func (v *TaskListView) updateEditFocus() {
	v.editTitle.Blur()
	v.editDesc.Blur()
	v.editTags.Blur()
	switch v.editFocusIdx {
	case fieldTitle:
		v.editTitle.Focus()
	case fieldDesc:
		v.editDesc.Focus()
	case fieldTags:
		v.editTags.Focus()
	}
}

func (v *TaskListView) saveTask() tea.Cmd {
	if len(v.customers) == 0 || len(v.executors) == 0 {
		v.err = fmt.Errorf("a task needs at least one customer and one executor")
		return nil
	}
	in := tracker.CreateTaskInput{
		Title:       v.editTitle.Value(),
		Description: strings.TrimSpace(v.editDesc.Value()),
		Priority:    v.editPriority.String(),
		CustomerID:  v.customers[v.customerIdx].ID,
		ExecutorID:  v.executors[v.executorIdx].ID,
		Tags:        strings.Split(v.editTags.Value(), ","),
	}
	if _, err := v.svc.CreateTask(v.ctx, in); err != nil {
		v.err = err
		return nil
	}
	v.editing = false
	return v.loadTasks()
}

func (v *TaskListView) visibleItems() int {
	// Each task takes two lines plus a blank separator.
	return max((v.height-10)/3, 1)
}

func (v *TaskListView) ensureVisible() {
	visible := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	}
	if v.cursor >= v.scrollY+visible {
		v.scrollY = v.cursor - visible + 1
	}
}

func (v *TaskListView) View() string {
	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}
	if v.editing {
		return v.renderEditForm()
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderTaskList())
	b.WriteString("\n")
	b.WriteString(renderError(v.styles, v.err))
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.styles
	title := s.Title.Render(fmt.Sprintf("Tasks (%d)", len(v.tasks)))
	if !v.searching && v.searchInput.Value() == "" {
		return title
	}
	searchStyle := s.Input
	if v.searching {
		searchStyle = s.InputFocused
	}
	searchWidth := clamp(styles.ContentWidth(v.width)-8, 10, 40)
	return lipgloss.JoinVertical(lipgloss.Left, title, searchStyle.Width(searchWidth).Render(v.searchInput.View()))
}

func (v *TaskListView) renderTaskList() string {
	if len(v.tasks) == 0 {
		return v.styles.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	now := v.now()
	end := min(v.scrollY+v.visibleItems(), len(v.tasks))
	items := make([]string, 0, end-v.scrollY)
	for i := v.scrollY; i < end; i++ {
		items = append(items, v.renderTaskItem(v.tasks[i], i == v.cursor, now))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool, now time.Time) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	lineStyle := s.ListItem.Width(width)
	if selected {
		lineStyle = s.ListSelected.Width(width)
	}

	status := lipgloss.NewStyle().Foreground(styles.StatusColor(task.Status)).Render("[" + task.Status.Label() + "]")
	priority := s.TaskPriority.Foreground(styles.PriorityColor(task.Priority)).Render(task.Priority.Label())
	titleLine := fmt.Sprintf("%s %s %s", status, priority, task.Title)

	var meta []string
	if days, ok := task.OverdueDays(now); ok {
		meta = append(meta, s.Overdue.Render(fmt.Sprintf("overdue %dd", days)))
	} else if task.DueDate != nil {
		meta = append(meta, s.TitleMuted.Render("due "+task.DueDate.Local().Format("2006-01-02")))
	}
	if len(task.Tags) > 0 {
		for _, name := range task.TagNames() {
			meta = append(meta, s.TagName.Render("#"+name))
		}
	} else {
		meta = append(meta, s.TitleMuted.Render("no tags"))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lineStyle.Render(titleLine),
		lineStyle.Render(strings.Join(meta, " ")),
	) + "\n"
}

func (v *TaskListView) renderEditForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 50)

	field := func(idx int, input bool) lipgloss.Style {
		switch {
		case input && idx == v.editFocusIdx:
			return s.InputFocused.Width(inputWidth)
		case input:
			return s.Input.Width(inputWidth)
		case idx == v.editFocusIdx:
			return s.ButtonFocused
		default:
			return s.Button
		}
	}
	userName := func(users []models.User, idx int) string {
		if len(users) == 0 {
			return "(none)"
		}
		return users[idx].Name
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Task"),
		"",
		"Title:",
		field(fieldTitle, true).Render(v.editTitle.View()),
		"Description:",
		field(fieldDesc, true).Render(v.editDesc.View()),
		"Priority:",
		field(fieldPriority, false).Render("◂ "+v.editPriority.Label()+" ▸"),
		"Customer:",
		field(fieldCustomer, false).Render("◂ "+userName(v.customers, v.customerIdx)+" ▸"),
		"Executor:",
		field(fieldExecutor, false).Render("◂ "+userName(v.executors, v.executorIdx)+" ▸"),
		"Tags:",
		field(fieldTags, true).Render(v.editTags.View()),
		"",
		field(fieldSave, false).Render(" Save "),
		"",
		renderError(s, v.err)+s.TitleMuted.Render("Tab: next • ←/→: choose • Ctrl+S: save • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderHelp() string {
	s := v.styles
	if contentWidth := styles.ContentWidth(v.width); contentWidth > 0 && contentWidth < 60 {
		return s.Help.Render(fmt.Sprintf("%s new • %s status • %s quit",
			s.HelpKey.Render("n"), s.HelpKey.Render("s"), s.HelpKey.Render("q")))
	}
	return s.Help.Render(
		fmt.Sprintf("%s new • %s status • %s priority • %s del • %s search • %s users • %s quit",
			s.HelpKey.Render("n"),
			s.HelpKey.Render("s"),
			s.HelpKey.Render("p"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("/"),
			s.HelpKey.Render("tab"),
			s.HelpKey.Render("q"),
		),
	)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q and its tag links will be removed.", v.deleteTarget.Title)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
