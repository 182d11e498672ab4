// Command i2csim assembles an emulated machine from a JSON description and
// drives it from a line-oriented monitor.
//
//	i2csim [-v | -quiet] [-syslog] [-log LEVEL] [-poll DURATION] [-c FILE | -m NAME] [SCRIPT]...
//
// Without a SCRIPT the monitor reads commands from stdin, prompting when
// stdin is a terminal. With -poll the environmental sensors are also
// sampled in the background and their readings published on the bus.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/cubesatlab/renode-infrastructure/config"
	"github.com/cubesatlab/renode-infrastructure/drivers/stm32i2c"
	"github.com/cubesatlab/renode-infrastructure/services/telemetry"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

const usage = `usage: i2csim [-v | -quiet] [-syslog] [-log LEVEL] [-poll DURATION] [-c FILE | -m NAME] [SCRIPT]...

  -c FILE    machine description (JSON)
  -m NAME    embedded machine description (default "` + config.DefaultMachine + `")
  -log LEVEL noisy, debug, info, warning or error
  -v         same as -log debug
  -quiet     same as -log error
  -syslog    log to the system log instead of stderr
  -poll D    sample the sensors every D (e.g. 500ms)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "i2csim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flag, args := flags.New(args, "-v", "-quiet", "-syslog", "-h", "-help", "--help")
	parm, args := parms.New(args, "-c", "-m", "-log", "-poll")
	if flag.ByName["-h"] || flag.ByName["-help"] || flag.ByName["--help"] {
		fmt.Print(usage)
		return nil
	}

	switch {
	case parm.ByName["-log"] != "":
		lv, ok := logx.ParseLevel(parm.ByName["-log"])
		if !ok {
			return fmt.Errorf("unknown log level %q", parm.ByName["-log"])
		}
		logx.DefaultLevel = lv
	case flag.ByName["-v"]:
		logx.DefaultLevel = logx.Debug
	case flag.ByName["-quiet"]:
		logx.DefaultLevel = logx.Error
	}
	if !flag.ByName["-syslog"] {
		logx.SetOutput(os.Stderr)
	}

	var (
		cfg *config.Machine
		err error
	)
	switch {
	case parm.ByName["-c"] != "" && parm.ByName["-m"] != "":
		return fmt.Errorf("-c and -m are exclusive")
	case parm.ByName["-c"] != "":
		cfg, err = config.Load(parm.ByName["-c"])
	case parm.ByName["-m"] != "":
		cfg, err = config.Embedded(parm.ByName["-m"])
	default:
		cfg, err = config.Embedded(config.DefaultMachine)
	}
	if err != nil {
		return err
	}
	built, err := cfg.Build()
	if err != nil {
		return err
	}

	svc, err := telemetry.New(built, built.Machine.Bus().NewConnection("telemetry"), telemetry.Config{
		Driver: stm32i2c.Config{Idle: func() { built.Machine.Sync() }},
	})
	if err != nil {
		return err
	}
	if p := parm.ByName["-poll"]; p != "" {
		d, err := time.ParseDuration(p)
		if err != nil || d <= 0 {
			return fmt.Errorf("bad -poll %q", p)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go svc.Run(ctx, d)
	}

	mon := newMonitor(built, svc, os.Stdout)
	if len(args) == 0 {
		return mon.run(os.Stdin, isatty.IsTerminal(os.Stdin.Fd()))
	}
	for _, name := range args {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		err = mon.run(f, false)
		f.Close()
		if err != nil {
			return err
		}
		if mon.quit {
			break
		}
	}
	return nil
}
