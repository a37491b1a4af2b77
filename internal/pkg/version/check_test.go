package version

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/buildgate/buildgate/internal/pkg/build"
	"github.com/buildgate/buildgate/internal/pkg/json"
	"github.com/buildgate/buildgate/internal/pkg/utils"
)

func TestCheckIfLatestDevBuild(t *testing.T) {
	c, _ := mockedChecker(t)
	err := c.CheckIfLatest(build.DevVersionValue)
	assert.Error(t, err)
	assert.Equal(t, `skipped, found dev build`, err.Error())
}

func TestCheckIfLatestMatch(t *testing.T) {
	c, out := mockedChecker(t)
	err := c.CheckIfLatest(`v1.2.3`)
	assert.NoError(t, err)
	assert.NotContains(t, out.String(), `WARN`)
}

func TestCheckIfLatestOldVersion(t *testing.T) {
	c, out := mockedChecker(t)
	err := c.CheckIfLatest(`v1.2.2`)
	assert.NoError(t, err)
	assert.Contains(t, out.String(), `WARNING: A new version "v1.2.3" is available.`)
}

func mockedChecker(t *testing.T) (*checker, *bytes.Buffer) {
	logger, out := utils.NewDebugLogger()
	c := NewChecker(context.Background(), logger)

	// Set short retry delay in tests
	resty := c.api.GetRestyClient()
	resty.RetryWaitTime = 1 * time.Millisecond
	resty.RetryMaxWaitTime = 1 * time.Millisecond

	// Enable http mock
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.ActivateNonDefault(resty.GetClient())

	// The first release has no assets, the build is in progress, it must be skipped
	body := make([]interface{}, 0)
	json.MustDecodeString(`[{"tag_name": "v1.2.4", "assets": []}, {"tag_name": "v1.2.3", "assets": [{"id": 123}]}]`, &body)
	responder, err := httpmock.NewJsonResponder(200, body)
	assert.NoError(t, err)
	httpmock.RegisterResponder("GET", `=~.+repos/buildgate/buildgate/releases.+`, responder)

	return c, out
}
