package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOutreachSend = "outreach.send"

type OutreachSendPayload struct {
	LeadID string `json:"leadId"`
	Stage  string `json:"stage"`
}

func NewOutreachSendTask(payload OutreachSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachSend, data), nil
}

func ParseOutreachSendPayload(task *asynq.Task) (OutreachSendPayload, error) {
	var payload OutreachSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachSendPayload{}, err
	}
	return payload, nil
}
