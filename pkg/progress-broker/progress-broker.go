package progress_broker

import (
	"context"
	"edit-box/internal/utils"
	console_parser "edit-box/pkg/encoder/console-parser"
)

// DefaultTopic Topic to send progress events into when none is configured
const DefaultTopic = "editing-state"

type ProgressBroker struct {
	// Name of the Dapr Component to use
	componentName string
	// Name of the topic to publish into
	topic string
	// Client to publish event into
	client utils.Publisher
}

type EditState int8

const (
	InProgress EditState = iota
	Done
	Error
)

// EditInfos A single event, serialized as JSON by the sidecar
type EditInfos struct {
	JobId string      `json:"jobId"`
	State EditState   `json:"state"`
	Data  interface{} `json:"data"`
}

// editError Payload of an Error event
type editError struct {
	// Error message
	Message string `json:"message"`
}

// editDone Payload of a Done event
type editDone struct {
	// Object storage key of the output, empty if it was not uploaded
	Key string `json:"key,omitempty"`
}

type NewBrokerOptions struct {
	Component string
	Topic     string
}

func NewProgressBroker(client utils.Publisher, opt NewBrokerOptions) *ProgressBroker {
	topic := opt.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &ProgressBroker{
		componentName: opt.Component,
		topic:         topic,
		client:        client,
	}
}

func (eb *ProgressBroker) SendProgress(ctx context.Context, data EditInfos) error {
	return eb.client.PublishEvent(ctx, eb.componentName, eb.topic, data)
}

// Progress Publish an encoding progress of job
func (eb *ProgressBroker) Progress(ctx context.Context, jobId string, p *console_parser.EncodingProgress) error {
	return eb.SendProgress(ctx, EditInfos{JobId: jobId, State: InProgress, Data: p})
}

// Fail Publish the error ending job
func (eb *ProgressBroker) Fail(ctx context.Context, jobId string, err error) error {
	return eb.SendProgress(ctx, EditInfos{JobId: jobId, State: Error, Data: editError{Message: err.Error()}})
}

// Done Publish the completion of job. key is where the output was uploaded, if it was
func (eb *ProgressBroker) Done(ctx context.Context, jobId string, key string) error {
	return eb.SendProgress(ctx, EditInfos{JobId: jobId, State: Done, Data: editDone{Key: key}})
}
