package notify

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// RunEvent is the summary of one finished collection run fanned out
// to the attached observers.
type RunEvent struct {
	TargetDate     string `json:"target_date"`
	Status         string `json:"status"`
	MetricsWritten int    `json:"metrics_written"`
	ElapsedMillis  int64  `json:"elapsed_ms"`
	Error          string `json:"error,omitempty"`
	Timestamp      int64  `json:"ts"`
}

type Observer interface {
	Notify(event RunEvent)
}

// FileObserver appends run events to a JSONL file, one event per line.
type FileObserver struct {
	filePath string
}

func NewFileObserver(filePath string) *FileObserver {
	return &FileObserver{
		filePath: filePath,
	}
}

func (o *FileObserver) Notify(event RunEvent) {
	file, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		log.Error().Err(err).Msg("failed to open notify file")
		return
	}
	defer file.Close()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal run event")
		return
	}

	if _, err := fmt.Fprintln(file, string(data)); err != nil {
		log.Error().Err(err).Msg("failed to write to notify file")
	}
}

// HTTPObserver posts run events to a webhook. Delivery retries
// transient failures with backoff before giving up.
type HTTPObserver struct {
	url    string
	client *retryablehttp.Client
}

func NewHTTPObserver(url string) *HTTPObserver {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	return &HTTPObserver{
		url:    url,
		client: client,
	}
}

func (o *HTTPObserver) Notify(event RunEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal run event")
		return
	}

	resp, err := o.client.Post(o.url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Error().Err(err).Str("url", o.url).Msg("failed to deliver run event")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("notify webhook returned non-OK status")
	}
}

// Subject fans one run event out to every attached observer.
type Subject struct {
	observers []Observer
}

func NewSubject() *Subject {
	return &Subject{
		observers: make([]Observer, 0),
	}
}

func (s *Subject) Attach(observer Observer) {
	s.observers = append(s.observers, observer)
}

func (s *Subject) Notify(event RunEvent) {
	for _, observer := range s.observers {
		observer.Notify(event)
	}
}
