package main

import (
	"bytes"
	"context"
	edit_box "edit-box/pkg/edit-box"
	"edit-box/pkg/encoder"
	"edit-box/pkg/logger"
	object_storage "edit-box/pkg/object-storage"
	progress_broker "edit-box/pkg/progress-broker"
	"edit-box/pkg/timeline"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dapr/go-sdk/client"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	// Global logger instance
	log = logger.Build()
	// Master context
	ctx = context.Background()
)

const (
	// Env variables
	OBJECT_STORE_NAME        = "OBJECT_STORE_NAME"
	PUBSUB_NAME              = "PUBSUB_NAME"
	PUBSUB_TOPIC_PROGRESS    = "PUBSUB_TOPIC_PROGRESS"
	DAPR_MAX_REQUEST_SIZE_MB = "DAPR_MAX_REQUEST_SIZE_MB"
	// HTTP port for the server
	APP_PORT = "APP_PORT"
	// GRPC port to use to communicate with DAPR
	DAPR_GRPC_PORT = "DAPR_GRPC_PORT"

	// Default values
	// Override default max grpc request size (4MB) for dapr client
	DefaultDaprMaxRequestSize = 2500
	// Default grpc api port for dapr
	DefaultDaprGrpcPort = 50001
	DefaultAppPort      = 8080
	// Number of time to retry a download from the object store
	DefaultObjStoreMaxRetry = 10
)

// components Everything an edit needs, built once from the environment
type components struct {
	// Build a new object storage for a single request. Nil if no object store is defined
	newStorage func() (edit_box.Storage, error)
	// Clip inspection
	prober timeline.Prober
	// Event broker, can be nil
	broker *progress_broker.ProgressBroker
}

// newEditBox An edit box with its own object storage
func (comp components) newEditBox() (*edit_box.EditBox, error) {
	var storage edit_box.Storage
	if comp.newStorage != nil {
		var err error
		if storage, err = comp.newStorage(); err != nil {
			return nil, fmt.Errorf("cannot init object store : %w", err)
		}
	}
	return edit_box.NewEditBox(ctx, storage, comp.prober), nil
}

// Fire a new editing
// The response is only sent once the render is over, so a message broker delivering the request
// keeps the message until the edit has succeeded or failed
// A dry run request is answered right away with the FFMPEG command line
func editSync(w http.ResponseWriter, req *http.Request, comp components) {
	// Confirm Dapr subscription
	if req.Method == http.MethodOptions {
		_, _ = w.Write([]byte("OK"))
		return
	}
	editRequest, err := makeEditRequest(req.Body)
	if err != nil {
		log.Warnf(`Wrong edit request received : %s `, err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Infof(`New editing request with id "%s" received !`, editRequest.JobId)

	if editRequest.Options.DryRun {
		cmd, err := dryRun(comp, editRequest)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(cmd))
		return
	}

	// Without any output given, render into a temp dir and upload the result under the job id
	if len(editRequest.Output) == 0 {
		workDir, err := os.MkdirTemp("", "edit-instance")
		if err != nil {
			http.Error(w, fmt.Sprintf("can't create temp workDir : %s", err.Error()), http.StatusInternalServerError)
			return
		}
		defer func() {
			log.Infof(`Removing working directory "%s" from the local filesystem`, workDir)
			if err := os.RemoveAll(workDir); err != nil {
				log.Warnf(`Could not remove directory "%s" : %s`, workDir, err.Error())
			}
		}()
		outputName := fmt.Sprintf("%s.mkv", editRequest.JobId)
		editRequest.Output = []string{filepath.Join(workDir, outputName)}
		if editRequest.UploadKey == "" {
			editRequest.UploadKey = outputName
		}
	}
	code, err := edit(comp, editRequest)
	if err != nil {
		log.Errorf(`error while processing edit request "%s" : %s`, editRequest.JobId, err.Error())
		http.Error(w, err.Error(), code)
		return
	}
	log.Infof(`Processing of request with id "%s" complete !`, editRequest.JobId)
	// Finally, ACK the message
	_, _ = w.Write([]byte("OK"))
}

// Health endpoint
func healthz(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Attempt to parse a body into an edit request
func parseBody(from io.Reader) (*edit_box.EditRequest, error) {
	// Expected format : a dapr event wrapping the request in "data", or the raw request
	contents, err := io.ReadAll(from)
	if err != nil {
		return nil, err
	}

	var dEvt DaprEvent
	if err = json.NewDecoder(bytes.NewReader(contents)).Decode(&dEvt); err != nil {
		return nil, err
	}
	// Only dapr events carry both a type and a topic
	if dEvt.Type != "" && dEvt.Topic != "" {
		return &dEvt.Data, nil
	}

	// Else, try to parse the request as a raw edit request
	var eReq edit_box.EditRequest
	if err = json.NewDecoder(bytes.NewReader(contents)).Decode(&eReq); err != nil {
		return nil, err
	}
	return &eReq, nil
}

// Format a proper edit request from a stream
func makeEditRequest(from io.ReadCloser) (*edit_box.EditRequest, error) {
	if from == nil || from == http.NoBody {
		return nil, fmt.Errorf("no body provided")
	}
	defer from.Close()
	eReq, err := parseBody(from)
	if err != nil {
		return nil, err
	}
	// Sanity checks
	if eReq.JobId == "" {
		return nil, fmt.Errorf("no job id provided")
	}
	if eReq.Preset == "" && eReq.Timeline.Len() == 0 && eReq.Timeline.Text() == "" {
		return nil, fmt.Errorf("no timeline provided")
	}
	return eReq, nil
}

// Fire a new editing and wait for it to finish/error. Progress is published along the way
func edit(comp components, req *edit_box.EditRequest) (int, error) {
	eBox, err := comp.newEditBox()
	if err != nil {
		return http.StatusInternalServerError, err
	}
	go eBox.Edit(req)
	for {
		select {
		case e := <-eBox.EChan:
			if comp.broker != nil {
				if err := comp.broker.Fail(ctx, req.JobId, e); err != nil {
					log.Warnf("Could not publish error : %s", err)
				}
			}
			eBox.Cancel()
			return http.StatusBadRequest, e
		case p := <-eBox.PChan:
			log.Debugf("[%s] :: %.1f%% (%s)", req.JobId, p.Percent, p.Time)
			if comp.broker != nil {
				if err := comp.broker.Progress(ctx, req.JobId, p); err != nil {
					log.Warnf("Could not publish progress : %s", err)
				}
			}
		case <-eBox.Ctx.Done():
			if comp.broker != nil {
				if err := comp.broker.Done(ctx, req.JobId, req.UploadKey); err != nil {
					log.Warnf("Could not publish completion : %s", err)
				}
			}
			return http.StatusOK, nil
		}
	}
}

func makeDaprClient(maxRequestSizeMB int) (client.Client, error) {
	var opts []grpc.CallOption

	// The sidecar exposes its actual port through the environment
	port := DefaultDaprGrpcPort
	if envPort, err := strconv.ParseInt(os.Getenv(DAPR_GRPC_PORT), 10, 32); err == nil && envPort != 0 {
		port = int(envPort)
	}
	opts = append(opts, grpc.MaxCallRecvMsgSize(maxRequestSizeMB*1024*1024))
	conn, err := grpc.Dial(net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port)),
		grpc.WithDefaultCallOptions(opts...), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return client.NewClientWithConnection(conn), nil
}

// Fetch all env variables, and initializes corresponding components
func loadComponents() (components, error) {
	comp := components{prober: encoder.NewFFProbe()}
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file detected ! ")
	}
	objStoreComponent := os.Getenv(OBJECT_STORE_NAME)
	pubSubComponent := os.Getenv(PUBSUB_NAME)
	if objStoreComponent == "" && pubSubComponent == "" {
		log.Info("No Dapr component defined, only local files can be used")
		return comp, nil
	}
	maxRequestSize := DefaultDaprMaxRequestSize
	if i, err := strconv.ParseInt(os.Getenv(DAPR_MAX_REQUEST_SIZE_MB), 10, 32); err == nil && i != 0 {
		maxRequestSize = int(i)
	}
	daprClient, err := makeDaprClient(maxRequestSize)
	if err != nil {
		return comp, fmt.Errorf("cannot init dapr client : %w", err)
	}

	// Object store, used to fetch "store://" clips and upload outputs
	if objStoreComponent != "" {
		log.Infof("The object store component %s is defined ! ", objStoreComponent)
		comp.newStorage = func() (edit_box.Storage, error) {
			objStore, err := object_storage.NewDaprObjectStorage(daprClient, objStoreComponent, DefaultObjStoreMaxRetry)
			if err != nil {
				return nil, err
			}
			return objStore, nil
		}
	}
	// Event broker. This is optional, the server can function without it defined
	if pubSubComponent != "" {
		log.Info("The pubsub component is defined ! ")
		comp.broker = progress_broker.NewProgressBroker(daprClient, progress_broker.NewBrokerOptions{
			Component: pubSubComponent,
			Topic:     os.Getenv(PUBSUB_TOPIC_PROGRESS),
		})
	}
	return comp, nil
}

func serve(comp components) error {
	http.HandleFunc("/edit", func(w http.ResponseWriter, req *http.Request) {
		editSync(w, req, comp)
	})
	http.HandleFunc("/healthz", healthz)

	port := DefaultAppPort
	if i, err := strconv.ParseInt(os.Getenv(APP_PORT), 10, 32); err == nil && i != 0 {
		port = int(i)
	}
	log.Infof("Started server on PORT %d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
}

func main() {
	opt, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Error(err)
		os.Exit(2)
	}
	comp, err := loadComponents()
	if err != nil {
		log.Fatal(err)
	}
	if opt.oneShot() {
		if err = runOnce(comp, opt, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err = serve(comp); err != nil {
		log.Fatal(err)
	}
}

// An event as forwarded by dapr
type DaprEvent struct {
	Type  string               `json:"type"`
	Topic string               `json:"topic"`
	Data  edit_box.EditRequest `json:"data"`
}
