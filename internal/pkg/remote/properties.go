package remote

import (
	"context"
)

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

func (a *RunApi) GetProperties(ctx context.Context) (map[string]string, error) {
	result := &propertiesBody{}
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetResult(result).
		Get("v1/runs/{runId}/properties")
	if err != nil {
		return nil, err
	}
	if result.Properties == nil {
		return map[string]string{}, nil
	}
	return result.Properties, nil
}

func (a *RunApi) SetProperties(ctx context.Context, props map[string]string) error {
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetBody(&propertiesBody{Properties: props}).
		Post("v1/runs/{runId}/properties")
	return err
}
