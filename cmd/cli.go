package main

import (
	edit_box "edit-box/pkg/edit-box"
	"edit-box/pkg/encoder"
	"edit-box/pkg/project"
	"flag"
	"fmt"
	"io"
	"strings"
)

// cliOptions Command line options. Without a project nor a preset, edit-box runs as an HTTP server
type cliOptions struct {
	// Project file to compile
	project string
	// Target of the project file
	target string
	// Preset to apply on files
	preset string
	files  []string
	// Print the command line only
	dry bool
	// Object storage key of the output
	upload string
	// Job id used in progress events
	jobId string
}

func parseFlags(args []string) (*cliOptions, error) {
	opt := &cliOptions{}
	fs := flag.NewFlagSet("edit-box", flag.ContinueOnError)
	fs.StringVar(&opt.project, "project", "", "project file to compile")
	fs.StringVar(&opt.target, "target", project.DefaultTarget, "target of the project file to compile")
	fs.StringVar(&opt.preset, "preset", "", fmt.Sprintf("ready-made timeline applied to the files given as arguments (%s)", strings.Join(encoder.PresetNames(), ", ")))
	fs.BoolVar(&opt.dry, "dry", false, "print the FFMPEG command line instead of running it")
	fs.StringVar(&opt.upload, "upload", "", "object storage key to upload the output to")
	fs.StringVar(&opt.jobId, "job", "local", "job id used in progress events")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opt.files = fs.Args()
	if opt.project != "" && opt.preset != "" {
		return nil, fmt.Errorf("-project and -preset cannot be used together")
	}
	if len(opt.files) > 0 && opt.preset == "" {
		return nil, fmt.Errorf("unexpected arguments %v, files are only used with -preset", opt.files)
	}
	return opt, nil
}

// oneShot Whether a single request is given on the command line
func (opt *cliOptions) oneShot() bool {
	return opt.project != "" || opt.preset != ""
}

// request The edit request described by the command line
func (opt *cliOptions) request() (*edit_box.EditRequest, error) {
	req := &edit_box.EditRequest{
		JobId:     opt.jobId,
		UploadKey: opt.upload,
		Options:   edit_box.EditOptions{DryRun: opt.dry},
	}
	if opt.preset != "" {
		req.Preset = opt.preset
		req.Files = opt.files
		return req, nil
	}
	p, err := project.Load(opt.project)
	if err != nil {
		return nil, err
	}
	if req.Timeline, err = p.Target(opt.target); err != nil {
		return nil, err
	}
	req.Flags = p.Flags
	req.Output = p.Output
	return req, nil
}

// dryRun Compile req into its FFMPEG command line, without running it
func dryRun(comp components, req *edit_box.EditRequest) (string, error) {
	eBox, err := comp.newEditBox()
	if err != nil {
		return "", err
	}
	defer eBox.Cancel()
	if eBox.Storage != nil {
		defer eBox.Storage.CleanUp()
	}
	b, err := eBox.Plan(req)
	if err != nil {
		return "", err
	}
	return b.GetCommandLine(), nil
}

// runOnce Handle the request of the command line, printing the command line in dry mode
func runOnce(comp components, opt *cliOptions, out io.Writer) error {
	req, err := opt.request()
	if err != nil {
		return err
	}
	if req.Options.DryRun {
		cmd, err := dryRun(comp, req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, cmd)
		return err
	}
	_, err = edit(comp, req)
	return err
}
