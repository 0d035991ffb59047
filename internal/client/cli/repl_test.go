package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	err      error
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeExec) Register(context.Context) error { return f.record("register") }
func (f *fakeExec) Login(context.Context) error    { return f.record("login") }
func (f *fakeExec) Self(context.Context) error     { return f.record("self") }
func (f *fakeExec) Refresh(context.Context) error  { return f.record("refresh") }
func (f *fakeExec) Logout(context.Context) error   { return f.record("logout") }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)
	f := &fakeExec{}
	input := "register\nlogin\n\nself\nme\nrefresh\nlogout\nexit\nlogin\n"

	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{"register", "login", "self", "self", "refresh", "logout"}, f.calls)
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	captureOutput(t)
	f := &fakeExec{}

	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader("self")))

	assert.Equal(t, []string{"self"}, f.calls)
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)
	f := &fakeExec{err: errors.New("server unavailable")}

	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader("login\nself\nquit\n")))

	assert.Equal(t, []string{"login", "self"}, f.calls)
	assert.Contains(t, *out, "Error: server unavailable")
}

func TestRunREPL_HelpAndPrompt(t *testing.T) {
	out := captureOutput(t)
	f := &fakeExec{loggedIn: true}

	runREPL(context.Background(), f, func() string { return " (alice@example.com)" },
		bufio.NewReader(strings.NewReader("help\nbogus\nexit\n")))

	assert.Contains(t, *out, "ak (alice@example.com)>")
	assert.Contains(t, *out, "Available commands: self, refresh, logout, help, exit")
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Empty(t, f.calls)
}
