package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/taskdesk/internal/tracker"
	"github.com/tgienger/taskdesk/internal/ui/keys"
	"github.com/tgienger/taskdesk/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewTasks View = iota
	ViewUsers
)

type App struct {
	currentView View
	taskList    *views.TaskListView
	userList    *views.UserListView
	keys        keys.KeyMap
}

// NewApp creates the root model. ctx carries the logger used by the service.
func NewApp(ctx context.Context, svc *tracker.Service) *App {
	return &App{
		currentView: ViewTasks,
		taskList:    views.NewTaskListView(ctx, svc),
		userList:    views.NewUserListView(ctx, svc),
		keys:        keys.DefaultKeyMap(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.taskList.Init(), a.userList.Init())
}

func (a *App) editing() bool {
	if a.currentView == ViewUsers {
		return a.userList.Editing()
	}
	return a.taskList.Editing()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Tab) && !a.editing() {
			if a.currentView == ViewTasks {
				a.currentView = ViewUsers
			} else {
				a.currentView = ViewTasks
			}
			return a, nil
		}
	case views.ErrMsg:
	default:
		// Loads and resizes reach both views whichever one is showing.
		_, c1 := a.taskList.Update(msg)
		_, c2 := a.userList.Update(msg)
		return a, tea.Batch(c1, c2)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewUsers:
		_, cmd = a.userList.Update(msg)
	default:
		_, cmd = a.taskList.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	if a.currentView == ViewUsers {
		return a.userList.View()
	}
	return a.taskList.View()
}
