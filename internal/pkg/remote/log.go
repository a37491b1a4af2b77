package remote

import (
	"context"
	"strconv"
)

type logLinesBody struct {
	Lines []string `json:"lines"`
}

func (a *RunApi) AppendLogLines(ctx context.Context, recordId string, lines []string) error {
	_, err := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetPathParam("recordId", recordId).
		SetBody(&logLinesBody{Lines: lines}).
		Post("v1/runs/{runId}/records/{recordId}/log")
	if err != nil {
		return mapNotFound(err, recordId)
	}
	return nil
}

func (a *RunApi) ReadLogLines(ctx context.Context, recordId string, startLine, endLine int) ([]string, error) {
	result := &logLinesBody{}
	request := a.client.R(ctx).
		SetPathParam("runId", a.runId).
		SetPathParam("recordId", recordId).
		SetResult(result)

	// Line numbers are 1-based, zero means an unbounded window
	if startLine > 0 {
		request.SetQueryParam("start", strconv.Itoa(startLine))
	}
	if endLine > 0 {
		request.SetQueryParam("end", strconv.Itoa(endLine))
	}

	if _, err := request.Get("v1/runs/{runId}/records/{recordId}/log"); err != nil {
		return nil, mapNotFound(err, recordId)
	}
	return result.Lines, nil
}
