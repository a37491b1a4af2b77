package options

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
)

const envPrefix = "BUILDGATE_"

// envNamingConvention maps flag name to ENV variable name,
// eg. "run-api-url" -> "BUILDGATE_RUN_API_URL".
type envNamingConvention struct{}

func (*envNamingConvention) Replace(flagName string) string {
	if len(flagName) == 0 {
		panic(fmt.Errorf("flag name cannot be empty"))
	}
	return envPrefix + strcase.ToScreamingSnake(flagName)
}

// loadDotEnv loads envs from the ".env" file in the dir, if it exists.
// Existing ENV variables are not overwritten.
func loadDotEnv(dir string) error {
	if len(dir) == 0 {
		return nil
	}

	path := filepath.Join(dir, ".env")
	stat, err := os.Stat(path)
	switch {
	case err != nil && os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf(`cannot check if path "%s" exists: %s`, path, err)
	case stat.IsDir():
		return nil
	}

	return godotenv.Load(path)
}
