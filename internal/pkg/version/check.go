package version

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildgate/buildgate/internal/pkg/build"
	"github.com/buildgate/buildgate/internal/pkg/client"
)

// EnvVersionCheck disables the update check when set to "false".
const EnvVersionCheck = "BUILDGATE_VERSION_CHECK"

type checker struct {
	api    *client.Client
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.SugaredLogger
}

func NewChecker(parentCtx context.Context, logger *zap.SugaredLogger) *checker {
	// Timeout 3 seconds
	ctx, cancel := context.WithTimeout(parentCtx, 3*time.Second)

	// Create client
	api := client.NewClient(logger, false).WithHostUrl(`https://api.github.com`)
	return &checker{api, ctx, cancel, logger}
}

func (c *checker) CheckIfLatest(currentVersion string) error {
	defer c.cancel()

	if currentVersion == build.DevVersionValue {
		return fmt.Errorf(`skipped, found dev build`)
	}

	latestVersion, err := c.getLatestVersion()
	if err != nil {
		return err
	}

	if currentVersion != latestVersion {
		c.logger.Warn(`*******************************************************`)
		c.logger.Warnf(`WARNING: A new version "%s" is available.`, latestVersion)
		c.logger.Warn(`Please update to get the latest features and bug fixes.`)
		c.logger.Warn(`*******************************************************`)
		c.logger.Warn()
	}

	return nil
}

func (c *checker) getLatestVersion() (string, error) {
	// Load releases
	// The last release may be without assets (build in progress), so we load the last 5 releases.
	result := make([]interface{}, 0)
	_, err := c.api.R(c.ctx).SetResult(&result).Get(`repos/buildgate/buildgate/releases?per_page=5`)
	if err != nil {
		return "", err
	}

	// Determine the latest version
	for _, item := range result {
		// Release is object
		release, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		// Contains assets key
		assetsRaw, ok := release["assets"]
		if !ok {
			continue
		}

		// Assets is an array
		assets, ok := assetsRaw.([]interface{})
		if !ok {
			continue
		}

		// Skip empty assets
		if len(assets) == 0 {
			continue
		}

		// Release contains tag_name
		nameRaw, ok := release["tag_name"]
		if !ok {
			continue
		}

		// Tag name is string
		name, ok := nameRaw.(string)
		if !ok {
			continue
		}

		// Ok, name found
		if name != "" {
			return name, nil
		}
	}

	return "", fmt.Errorf(`failed to parse the latest version`)
}
