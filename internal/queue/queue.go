// Package queue is the asynchronous task boundary between the ingestion path
// and the alert worker. Jobs are delivered at least once; the Redis-backed
// queue carries them across processes, the in-process queue serves tests and
// single-binary runs.
package queue

import (
	"context"

	"github.com/securewatch/securewatch/internal/detection"
)

// Job is the follow-up work dispatched for one anomalous event.
type Job struct {
	ID            string  `json:"id"`
	EventID       string  `json:"event_id"`
	SourceIP      string  `json:"source_ip"`
	DestinationIP string  `json:"destination_ip"`
	LogType       string  `json:"log_type"`
	RawLog        string  `json:"raw_log"`
	AnomalyScore  float64 `json:"anomaly_score"`
	Confidence    float64 `json:"confidence"`
}

// JobFromVerdict builds a job payload from a scored event.
func JobFromVerdict(jobID, eventID, sourceIP, destIP, logType, rawLog string, v detection.Verdict) Job {
	return Job{
		ID:            jobID,
		EventID:       eventID,
		SourceIP:      sourceIP,
		DestinationIP: destIP,
		LogType:       logType,
		RawLog:        rawLog,
		AnomalyScore:  v.AnomalyScore,
		Confidence:    v.Confidence,
	}
}

// Dispatcher hands jobs to the background execution context.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Consumer pops jobs for the worker loop. Pop returns (nil, nil) when no job
// arrived within the consumer's block window.
type Consumer interface {
	Pop(ctx context.Context) (*Job, error)
	Close() error
}
