package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/samber/lo"

	"github.com/256dpi/ota/pkg/config"
	"github.com/256dpi/ota/pkg/device"
	"github.com/256dpi/ota/pkg/diag"
	"github.com/256dpi/ota/pkg/mdns"
	"github.com/256dpi/ota/pkg/ota"
	"github.com/256dpi/ota/pkg/serial"
	"github.com/256dpi/ota/pkg/server"
	"github.com/256dpi/ota/pkg/storage"
	"github.com/256dpi/ota/pkg/utils"
)

// version is the compiled in firmware version, set with:
// -ldflags "-X main.version=1.5"
var version = "dev"

func main() {
	// parse command
	cmd := parseCommand()

	// run desired command
	if cmd.cRun {
		run(cmd)
	} else if cmd.cCheck {
		check(cmd)
	} else if cmd.cStatus {
		status(cmd)
	} else if cmd.cInit {
		initialize(cmd)
	} else if cmd.cServe {
		serve(cmd)
	} else if cmd.cPublish {
		publish(cmd)
	} else if cmd.cDiscover {
		discover(cmd)
	} else if cmd.cPorts {
		ports(cmd)
	} else if cmd.cVersion {
		fmt.Println(version)
	}
}

func run(cmd *command) {
	// get config
	cfg := getConfig(cmd)

	// prepare agent
	a := newAgent(cfg)
	defer a.close()

	// prepare context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// allow the diagnostic channel to settle
	if cfg.StartupDelay > 0 {
		select {
		case <-time.After(cfg.StartupDelay):
		case <-ctx.Done():
			return
		}
	}

	utils.Logf(a.out, "Running firmware version %s", a.state.Version)

	// run scheduler
	err := a.scheduler.Run(ctx, a.state)
	if err != nil && !errors.Is(err, context.Canceled) {
		exitIfSet(err)
	}
}

func check(cmd *command) {
	// get config
	cfg := getConfig(cmd)

	// prepare agent
	a := newAgent(cfg)
	defer a.close()

	// run check
	err := a.orchestrator.CheckAndApply(context.Background(), a.state)
	if err != nil {
		a.close()
		exitIfSet(err)
	}
}

func status(cmd *command) {
	// get config
	cfg := getConfig(cmd)

	// open region
	region := openRegion(cfg)

	// get status
	st, err := region.Status()
	exitIfSet(err)

	// prepare table
	tbl := newTable("SLOT", "STATE", "SIZE")
	tbl.add(st.Active, "active", bytefmt.ByteSize(uint64(st.Size)))
	if st.Staged > 0 {
		tbl.add(st.Inactive, "staged", bytefmt.ByteSize(uint64(st.Staged)))
	} else {
		tbl.add(st.Inactive, "inactive", "-")
	}

	// show table
	tbl.show(0)

	// show info
	fmt.Printf("\nVersion: %s\n", currentVersion(cfg, region))
}

func initialize(cmd *command) {
	// check file
	ok, err := utils.Exists(cmd.oConfig)
	exitIfSet(err)
	if ok && !cmd.oForce {
		exitWithError(fmt.Sprintf("%s already exists", cmd.oConfig))
	}

	// save default config
	exitIfSet(config.New().Save(cmd.oConfig))

	utils.Logf(os.Stdout, "Created %s", cmd.oConfig)
}

func serve(cmd *command) {
	// create server
	srv := server.NewServer(cmd.aDir, os.Stdout)

	// announce server
	if cmd.oAnnounce {
		// get port
		_, p, err := net.SplitHostPort(cmd.oAddr)
		exitIfSet(err)
		port, err := strconv.Atoi(p)
		exitIfSet(err)

		// get latest version
		latest, _ := srv.Latest()

		// announce
		announcement, err := mdns.Announce(clientID(), mdns.Service, port, []string{"version=" + latest})
		exitIfSet(err)
		defer announcement.Stop()
	}

	utils.Logf(os.Stdout, "Serving %s on %s", cmd.aDir, cmd.oAddr)

	// run server
	exitIfSet(http.ListenAndServe(cmd.oAddr, srv.Handler()))
}

func publish(cmd *command) {
	// read image
	image, err := os.ReadFile(cmd.aImage)
	exitIfSet(err)

	// publish release
	exitIfSet(server.NewServer(cmd.aDir, nil).Publish(cmd.aVersion, image))

	utils.Logf(os.Stdout, "Published %s (%s)", cmd.aVersion, bytefmt.ByteSize(uint64(len(image))))
}

func discover(cmd *command) {
	// discover servers
	list, err := mdns.Discover(mdns.Service, cmd.oDuration)
	exitIfSet(err)

	// prepare table
	tbl := newTable("INSTANCE", "HOSTNAME", "ADDRESS", "VERSION")

	// add rows
	for _, l := range list {
		v, _ := lo.Find(l.Text, func(text string) bool {
			return strings.HasPrefix(text, "version=")
		})
		tbl.add(l.Instance, l.Hostname, net.JoinHostPort(l.Address, strconv.Itoa(l.Port)), strings.TrimPrefix(v, "version="))
	}

	// show table
	tbl.show(0)
}

func ports(cmd *command) {
	// list ports
	list, err := serial.MatchPorts(cmd.aPattern)
	exitIfSet(err)

	// prepare table
	tbl := newTable("PATH")

	// add rows
	for _, p := range list {
		tbl.add(p)
	}

	// show table
	tbl.show(-1)
}

type agent struct {
	out          io.Writer
	channel      *diag.Channel
	state        *ota.State
	orchestrator *ota.Orchestrator
	scheduler    *ota.Scheduler
}

func newAgent(cfg *config.Config) *agent {
	// open diagnostic channel
	channel, err := diag.Open(cfg.Diagnostics, clientID())
	exitIfSet(err)

	// prepare connectivity
	var network ota.Connectivity = device.Static(true)
	if cfg.Network.Probe != "" {
		network = &device.DialProbe{
			Address: cfg.Network.Probe,
			Timeout: cfg.Network.Timeout,
		}
	}

	// open region
	region := openRegion(cfg)

	// prepare state
	state := ota.NewState(currentVersion(cfg, region))

	// prepare restarter
	restarter := newRestarter(cfg.Restart, channel, func() {
		// flush diagnostics before exiting
		_ = channel.Close()
	}, func() {
		// the agent keeps running, continue with the committed version
		state.Version = currentVersion(cfg, region)
	})

	// prepare orchestrator
	orchestrator := &ota.Orchestrator{
		Network:      network,
		Oracle:       ota.NewVersionOracle(cfg.VersionURL, channel),
		Transfer:     ota.NewTransfer(cfg.FirmwareURL, channel),
		Region:       region,
		Restarter:    restarter,
		Out:          channel,
		RestartDelay: cfg.RestartDelay,
		ChunkSize:    cfg.ChunkSize,
		StallTimeout: cfg.StallTimeout,
	}

	// prepare scheduler
	scheduler := ota.NewScheduler(orchestrator, network)
	scheduler.Interval = cfg.CheckInterval
	if cfg.LoopDelay > 0 {
		scheduler.LoopDelay = cfg.LoopDelay
	}

	return &agent{
		out:          channel,
		channel:      channel,
		state:        state,
		orchestrator: orchestrator,
		scheduler:    scheduler,
	}
}

// newRestarter returns a restarter that runs the configured command or exits
// the process. The command output is written to out, flush is called before
// exiting and resume after the command has run.
func newRestarter(cfg config.Restart, out io.Writer, flush, resume func()) ota.Restarter {
	// prepare exit
	if len(cfg.Command) == 0 {
		exit := &device.Exit{Code: cfg.ExitCode}
		return device.Func(func() {
			flush()
			exit.Restart()
		})
	}

	// prepare command
	command := &device.Command{
		Name: cfg.Command[0],
		Args: cfg.Command[1:],
		Out:  out,
	}

	return device.Func(func() {
		command.Restart()
		resume()
	})
}

func (a *agent) close() {
	_ = a.channel.Close()
}

func openRegion(cfg *config.Config) *storage.File {
	// get capacity
	capacity, err := cfg.Capacity()
	exitIfSet(err)

	// open region
	region, err := storage.OpenFile(cfg.Storage.Dir, capacity)
	exitIfSet(err)

	return region
}

// currentVersion returns the version of the committed image, falling back to
// the configured and then the compiled in version.
func currentVersion(cfg *config.Config, region *storage.File) string {
	// get committed version
	committed, err := region.Version()
	exitIfSet(err)
	if committed != "" {
		return committed
	}

	// get configured version
	if cfg.Version != "" {
		return cfg.Version
	}

	return version
}
