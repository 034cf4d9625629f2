package device

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/256dpi/ota/pkg/utils"
)

// Func adapts a function to the ota.Restarter interface.
type Func func()

// Restart implements the ota.Restarter interface.
func (f Func) Restart() {
	f()
}

// Command restarts the device by running a command, e.g. "systemctl restart".
type Command struct {
	Name string
	Args []string
	Out  io.Writer
}

// Restart implements the ota.Restarter interface.
func (c *Command) Restart() {
	// print command
	utils.Logf(c.Out, "%s %s", c.Name, strings.Join(c.Args, " "))

	// prepare command
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Stdout = c.Out
	cmd.Stderr = c.Out
	cmd.Env = os.Environ()

	// run command
	err := cmd.Run()
	if err != nil {
		utils.Logf(c.Out, "Restart failed: %s", err)
	}
}

// Exit restarts the device by exiting the process and leaving the restart to
// a supervisor.
type Exit struct {
	Code int

	// exit is replaced in tests.
	exit func(int)
}

// Restart implements the ota.Restarter interface.
func (e *Exit) Restart() {
	if e.exit != nil {
		e.exit(e.Code)
		return
	}
	os.Exit(e.Code)
}
