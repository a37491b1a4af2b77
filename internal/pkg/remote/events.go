package remote

import (
	"context"
)

type completionEventBody struct {
	Result   string `json:"result"`
	RecordId string `json:"recordId"`
}

func (a *RunApi) EmitCompletion(ctx context.Context, result string, recordId string) error {
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetBody(&completionEventBody{Result: result, RecordId: recordId}).
		Post("v1/runs/{runId}/events")
	return err
}
