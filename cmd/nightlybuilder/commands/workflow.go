package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
	"git.home.luguber.info/inful/nightlybuilder/internal/pipeline"
)

// WorkflowFlags are shared by the nightly and release commands.
type WorkflowFlags struct {
	Targets   []string `arg:"" name:"target" help:"Device(s) to build"`
	Source    string   `help:"Path to the Android tree (default: source.path or the working directory)" type:"path"`
	Host      string   `help:"Hostname for upload"`
	Port      string   `help:"Listen port for the host's sshd"`
	User      string   `help:"Username for the upload host"`
	RemoteDir string   `name:"remotedir" help:"Remote path for uploads"`
	LocalDir  string   `name:"localdir" help:"Local path for uploads" type:"path"`
	NoBuild   bool     `name:"nobuild" hidden:"" help:"Skip building and ship existing output"`
}

func (f *WorkflowFlags) request(w config.Workflow, quiet bool) pipeline.Request {
	return pipeline.Request{
		Workflow: w,
		Targets:  f.Targets,
		Overrides: destination.Overrides{
			Host:       f.Host,
			User:       f.User,
			RemotePath: f.RemoteDir,
			LocalPath:  f.LocalDir,
			Port:       f.Port,
		},
		SourceDir: f.Source,
		NoBuild:   f.NoBuild,
		Quiet:     quiet,
	}
}

// NightlyCmd implements the 'nightly' command.
type NightlyCmd struct {
	WorkflowFlags `embed:""`
	NoSync        bool `name:"nosync" hidden:"" help:"Skip the source sync"`
}

func (n *NightlyCmd) Run(_ *Global, root *CLI) error {
	req := n.request(config.WorkflowNightly, root.Quiet)
	req.NoSync = n.NoSync
	return runWorkflow(root, req)
}

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct {
	WorkflowFlags `embed:""`
}

func (r *ReleaseCmd) Run(_ *Global, root *CLI) error {
	return runWorkflow(root, r.request(config.WorkflowRelease, root.Quiet))
}

// runWorkflow performs one run. Failed targets and transfers are reported
// in the run log and do not change the exit status.
func runWorkflow(root *CLI, req pipeline.Request) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	svc, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := svc.runFunc(metrics.NoopRecorder{}, root.Quiet)(ctx, cfg, req)
	if err != nil {
		return err
	}
	if !root.Quiet {
		fmt.Printf("Run %s finished: %d target(s), %d failed deliveries, log %s\n",
			summary.RunID, len(summary.Targets), summary.FailedDeliveries(), summary.LogFile)
	}
	return nil
}
