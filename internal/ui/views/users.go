package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskdesk/internal/models"
	"github.com/tgienger/taskdesk/internal/tracker"
	"github.com/tgienger/taskdesk/internal/ui/keys"
	"github.com/tgienger/taskdesk/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// ErrMsg carries a failed command's error back to the view that issued it.
type ErrMsg struct{ Err error }

type userItem struct {
	user models.User
}

func (i userItem) Title() string       { return i.user.Name }
func (i userItem) Description() string { return i.user.Email + " · " + i.user.Role.Label() }
func (i userItem) FilterValue() string { return i.user.Name + " " + i.user.Email }

type userDelegate struct {
	styles *styles.Styles
	width  int
}

func (d userDelegate) Height() int                               { return 2 }
func (d userDelegate) Spacing() int                              { return 1 }
func (d userDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d userDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	u, ok := item.(userItem)
	if !ok {
		return
	}

	width := max(d.width-4, 20)
	titleStyle := d.styles.ListItem.Width(width)
	descStyle := d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	if index == m.Index() {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(u.Title()), descStyle.Render(u.Description()))
}

// UserListView lists users and lets the operator add or remove them.
type UserListView struct {
	ctx      context.Context
	svc      *tracker.Service
	list     list.Model
	delegate *userDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool
	err      error

	creating bool
	newName  textinput.Model
	newEmail textinput.Model
	newRole  models.Role
	focusIdx int // 0=name, 1=email, 2=role, 3=confirm

	confirmingDelete bool
	deleteTarget     models.User
}

func NewUserListView(ctx context.Context, svc *tracker.Service) *UserListView {
	s := styles.NewStyles()

	newName := textinput.New()
	newName.Placeholder = "Full name"
	newName.CharLimit = 100

	newEmail := textinput.New()
	newEmail.Placeholder = "name@example.com"
	newEmail.CharLimit = 200

	delegate := &userDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Users"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &UserListView{
		ctx:      ctx,
		svc:      svc,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		newName:  newName,
		newEmail: newEmail,
		newRole:  models.RoleCustomer,
	}
}

type usersLoadedMsg struct {
	users []models.User
}

// UsersChanged is sent after a user is created or deleted so other views
// can refresh their assignee lists.
type UsersChanged struct{}

func (v *UserListView) Init() tea.Cmd {
	return v.loadUsers
}

func (v *UserListView) loadUsers() tea.Msg {
	users, err := v.svc.Users(v.ctx)
	if err != nil {
		return ErrMsg{Err: err}
	}
	return usersLoadedMsg{users: users}
}

// Editing reports whether the view is capturing keystrokes for a form.
func (v *UserListView) Editing() bool {
	return v.creating || v.confirmingDelete || v.list.SettingFilter()
}

func (v *UserListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case usersLoadedMsg:
		items := make([]list.Item, len(msg.users))
		for i, u := range msg.users {
			items[i] = userItem{user: u}
		}
		v.list.SetItems(items)
		v.loaded = true
		v.err = nil
		return v, nil

	case ErrMsg:
		v.err = msg.Err
		v.loaded = true
		return v, nil

	case tea.KeyMsg:
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.creating {
			return v.updateCreating(msg)
		}
		if v.list.SettingFilter() {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Refresh):
			return v, v.loadUsers
		case key.Matches(msg, v.keys.New):
			v.creating = true
			v.focusIdx = 0
			v.newName.Reset()
			v.newEmail.Reset()
			v.newRole = models.RoleCustomer
			v.newName.Focus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Delete):
			if item, ok := v.list.SelectedItem().(userItem); ok {
				v.confirmingDelete = true
				v.deleteTarget = item.user
			}
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *UserListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		if err := v.svc.DeleteUser(v.ctx, v.deleteTarget.ID); err != nil {
			v.err = err
			return v, nil
		}
		return v, tea.Batch(v.loadUsers, func() tea.Msg { return UsersChanged{} })
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

func (v *UserListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.save()

	case msg.String() == "shift+tab":
		v.focusIdx = (v.focusIdx + 3) % 4
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 4
		v.updateFocus()
		return v, nil

	case v.focusIdx == 2 && (msg.String() == " " || msg.String() == "left" || msg.String() == "right"):
		if v.newRole == models.RoleCustomer {
			v.newRole = models.RoleExecutor
		} else {
			v.newRole = models.RoleCustomer
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < 3 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.save()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newName, cmd = v.newName.Update(msg)
	case 1:
		v.newEmail, cmd = v.newEmail.Update(msg)
	}
	return v, cmd
}

func (v *UserListView) save() tea.Cmd {
	_, err := v.svc.CreateUser(v.ctx, v.newName.Value(), v.newEmail.Value(), v.newRole.String())
	if err != nil {
		v.err = err
		return nil
	}
	v.creating = false
	v.err = nil
	return tea.Batch(v.loadUsers, func() tea.Msg { return UsersChanged{} })
}

func (v *UserListView) updateFocus() {
	v.newName.Blur()
	v.newEmail.Blur()
	switch v.focusIdx {
	case 0:
		v.newName.Focus()
	case 1:
		v.newEmail.Focus()
	}
}

func (v *UserListView) View() string {
	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}
	if v.creating {
		return v.renderCreateForm()
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	var content string
	if len(v.list.Items()) == 0 {
		content = lipgloss.JoinVertical(lipgloss.Left,
			v.styles.Title.Render("No Users"),
			"",
			v.styles.TitleMuted.Render("Press 'n' to add a customer or executor"),
		)
	} else {
		content = v.list.View()
	}
	content += "\n" + renderError(v.styles, v.err) + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *UserListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle, emailStyle, roleStyle, btnStyle := s.Input, s.Input, s.Button, s.Button
	switch v.focusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		emailStyle = s.InputFocused
	case 2:
		roleStyle = s.ButtonFocused
	case 3:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 50)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New User"),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.newName.View()),
		"",
		"Email:",
		emailStyle.Width(inputWidth).Render(v.newEmail.View()),
		"",
		"Role:",
		roleStyle.Render("◂ "+v.newRole.Label()+" ▸"),
		"",
		btnStyle.Render(" Create "),
		"",
		renderError(s, v.err)+s.TitleMuted.Render("Tab: next • Space: role • Ctrl+S: save • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *UserListView) renderHelp() string {
	return v.styles.Help.Render(
		fmt.Sprintf("%s new • %s del • %s filter • %s tasks • %s quit",
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("tab"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *UserListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete User?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be removed.", v.deleteTarget.Name)),
		s.TitleMuted.Render("Users still assigned to tasks cannot be deleted."),
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

func renderError(s *styles.Styles, err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	return s.Error.Render("error: "+msg) + "\n"
}
