package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildgate/buildgate/internal/pkg/client"
	"github.com/buildgate/buildgate/internal/pkg/options"
	"github.com/buildgate/buildgate/internal/pkg/utils"
)

// RunApi implements store.Client against the REST API of the run record store.
type RunApi struct {
	apiUrl string
	runId  string
	client *client.Client
	logger *zap.SugaredLogger
	token  string
}

func NewRunApiFromOptions(options *options.Options, ctx context.Context, logger *zap.SugaredLogger) (*RunApi, error) {
	if len(options.RunApiUrl) == 0 {
		panic(fmt.Errorf("run API url is not set"))
	}
	if len(options.RunApiToken) == 0 {
		panic(fmt.Errorf("run API token is not set"))
	}
	if len(options.RunId) == 0 {
		panic(fmt.Errorf("run id is not set"))
	}

	runApi := NewRunApi(options.RunApiUrl, options.RunId, logger, options.VerboseApi).WithToken(options.RunApiToken)

	// Verify the token and the run id by loading the run properties
	if _, err := runApi.GetProperties(ctx); err != nil {
		var errWithResponse client.ErrorWithResponse
		if errors.As(err, &errWithResponse) {
			if errWithResponse.IsUnauthorized() {
				return nil, fmt.Errorf("the specified run API token is not valid")
			}
			if errWithResponse.IsNotFound() {
				return nil, fmt.Errorf(`run "%s" not found`, options.RunId)
			}
		}
		return nil, utils.PrefixError("connection to the run API failed", err)
	}

	logger.Debugf("Run API token is valid.")
	logger.Debugf(`Run id: "%s".`, options.RunId)
	return runApi, nil
}

func NewRunApi(apiUrl string, runId string, logger *zap.SugaredLogger, verbose bool) *RunApi {
	c := client.NewClient(logger, verbose).WithHostUrl(apiUrl)
	c.SetError(&Error{})
	return &RunApi{apiUrl: apiUrl, runId: runId, client: c, logger: logger}
}

func (a *RunApi) WithToken(token string) *RunApi {
	a.token = token
	a.client.SetHeader("X-RunApi-Token", token)
	return a
}

func (a *RunApi) Token() string {
	return a.token
}

func (a *RunApi) RunId() string {
	return a.runId
}

func (a *RunApi) HostUrl() string {
	if len(a.apiUrl) == 0 {
		panic(fmt.Errorf("run API url is not set"))
	}
	return a.apiUrl
}

func (a *RunApi) SetRetry(count int, waitTime time.Duration, maxWaitTime time.Duration) {
	a.client.SetRetry(count, waitTime, maxWaitTime)
}
