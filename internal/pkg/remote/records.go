package remote

import (
	"context"
	"errors"

	"github.com/buildgate/buildgate/internal/pkg/model"
	"github.com/buildgate/buildgate/internal/pkg/store"
)

func (a *RunApi) GetRecord(ctx context.Context, recordId string) (*model.Record, error) {
	record := &model.Record{}
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetPathParam("recordId", recordId).
		SetResult(record).
		Get("v1/runs/{runId}/records/{recordId}")
	if err != nil {
		return nil, mapNotFound(err, recordId)
	}
	return record, nil
}

func (a *RunApi) UpsertRecord(ctx context.Context, record *model.Record) (*model.Record, error) {
	result := &model.Record{}
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetPathParam("recordId", record.Id).
		SetBody(record).
		SetResult(result).
		Post("v1/runs/{runId}/records/{recordId}")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mapNotFound converts the API 404 error to the store error, so the
// coordinators do not depend on the transport.
func mapNotFound(err error, recordId string) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return &store.NotFoundError{RecordId: recordId}
	}
	return err
}
