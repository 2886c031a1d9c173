package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	SubmissionID string    `json:"submission_id,omitempty"`
	UserID       string    `json:"user_id"`
	GroupID      string    `json:"group_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Status       string    `json:"status"`
	Details      any       `json:"details,omitempty"`
}

type Logger struct {
	logf func(format string, v ...any)
}

func NewLogger() *Logger {
	return &Logger{logf: log.Printf}
}

// LogSubmission records a lending or repayment sent to the Datti API.
func (a *Logger) LogSubmission(submissionID, userID, groupID, operation string, amount int64, status string) {
	a.log(Event{
		Timestamp:    time.Now(),
		EventType:    operation,
		SubmissionID: submissionID,
		UserID:       userID,
		GroupID:      groupID,
		Amount:       amount,
		Status:       status,
	})
}

func (a *Logger) LogError(submissionID, userID string, err error) {
	a.log(Event{
		Timestamp:    time.Now(),
		EventType:    "ERROR",
		SubmissionID: submissionID,
		UserID:       userID,
		Status:       "FAILED",
		Details:      map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(userID, operation, details string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: operation,
		UserID:    userID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	a.logf("AUDIT: %s", string(data))
}
