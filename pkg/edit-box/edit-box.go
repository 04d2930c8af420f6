package edit_box

import (
	"context"
	"edit-box/pkg/encoder"
	console_parser "edit-box/pkg/encoder/console-parser"
	"edit-box/pkg/logger"
	"edit-box/pkg/timeline"
	"fmt"
)

var (
	log = logger.Build()
)

// Storage Where remote clips are downloaded from, and outputs uploaded to
type Storage interface {
	timeline.Resolver
	Upload(ctx context.Context, path string, key string) error
	Delete(ctx context.Context, key string) error
	// Keys All keys downloaded so far
	Keys() []string
	// CleanUp Remove all downloaded clips from disk
	CleanUp()
}

type EditBox struct {
	// Remote clips storage, nil to only use local files
	Storage Storage
	// Stream layout and duration source of every clip
	Prober timeline.Prober
	// Context
	Ctx context.Context
	// Cancel function
	Cancel context.CancelFunc
	// Error channel
	EChan chan error
	// Progress channel
	PChan chan *console_parser.EncodingProgress
}

func NewEditBox(ctx context.Context, storage Storage, prober timeline.Prober) *EditBox {
	eCtx, cancel := context.WithCancel(ctx)
	return &EditBox{
		Storage: storage,
		Prober:  prober,
		Ctx:     eCtx,
		Cancel:  cancel,
		EChan:   make(chan error),
		PChan:   make(chan *console_parser.EncodingProgress),
	}
}

// Plan Compile the request into a full FFMpeg invocation. Remote clips are downloaded along the way
func (eb *EditBox) Plan(req *EditRequest) (*encoder.Builder, error) {
	root, err := req.root()
	if err != nil {
		return nil, err
	}
	var opts []timeline.Option
	if eb.Storage != nil {
		opts = append(opts, timeline.WithResolver(eb.Storage))
	}
	plan, err := timeline.Compile(eb.Ctx, root, eb.Prober, opts...)
	if err != nil {
		return nil, err
	}
	b := encoder.FromPlan(plan)
	if len(req.Flags) > 0 {
		b.SetFlags(req.Flags...)
	}
	if len(req.Output) > 0 {
		b.SetOutput(req.Output...)
	}
	return b, nil
}

// Edit Compile and render the request. Progress is sent on PChan, the first error on EChan.
// Ctx is done once everything is over, including the upload of the output
func (eb *EditBox) Edit(req *EditRequest) {
	defer eb.Cancel()
	log.Infof(`Now processing editing request "%s"`, req.JobId)
	if eb.Storage != nil {
		// Queue the clips cleaning up
		defer eb.Storage.CleanUp()
	}
	b, err := eb.Plan(req)
	if err != nil {
		log.Errorf(`Error while compiling the timeline : %s`, err)
		eb.fail(err)
		return
	}
	enc, err := b.Build(eb.Ctx)
	if err != nil {
		log.Errorf(`Error while setup encoding : %s`, err)
		eb.fail(err)
		return
	}

	// Finally, start the encoding process itself
	log.Debugf("Now executing FFMPEG cmd : %s", enc.GetCommandLine())
	go enc.Start()
	failed := false
Loop:
	for {
		select {
		case p := <-enc.PChan:
			select {
			case eb.PChan <- p:
			case <-eb.Ctx.Done():
			}
		case e := <-enc.EChan:
			failed = true
			eb.fail(fmt.Errorf("error while encoding : %w", e))
		case <-enc.Ctx.Done():
			break Loop
		}
	}
	if failed || eb.Ctx.Err() != nil {
		return
	}
	if err = eb.finish(req, b.OutputPath()); err != nil {
		eb.fail(err)
	}
}

// finish Upload the output and remove the used clips from the object storage, if asked to
func (eb *EditBox) finish(req *EditRequest, output string) error {
	if req.UploadKey != "" {
		if eb.Storage == nil {
			return fmt.Errorf("cannot upload %s : no object storage defined", output)
		}
		log.Infof(`Uploading "%s" on the backend object storage as "%s"`, output, req.UploadKey)
		if err := eb.Storage.Upload(eb.Ctx, output, req.UploadKey); err != nil {
			return fmt.Errorf("error while uploading the output : %w", err)
		}
	}
	if req.Options.DeleteAssetsFromObjStore && eb.Storage != nil {
		log.Infof("Removing used assets from remote object storage")
		for _, key := range eb.Storage.Keys() {
			if err := eb.Storage.Delete(eb.Ctx, key); err != nil {
				log.Warnf(`Could not delete "%s" from remote object storage : %s`, key, err)
			}
		}
	}
	return nil
}

func (eb *EditBox) fail(err error) {
	select {
	case eb.EChan <- err:
	case <-eb.Ctx.Done():
	}
}
