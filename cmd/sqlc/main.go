// Regenerates the sqlc query packages. Run from the repo root with the
// sqlc binary on PATH; .sqlc.base.yaml names the query sources.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v2"

	"github.com/spf13/viper"
)

const generatedConfig = "sqlc.yaml"

// buildConfig renders a one-off sqlc.yaml for a single query file. The
// package name comes from the directory above the sql/ dir.
func buildConfig(engine *viper.Viper, queryFile string) error {
	dir, _ := filepath.Split(queryFile)
	parts := strings.Split(dir, string(os.PathSeparator))
	packageName := parts[len(parts)-2]

	engine.Set("gen.go.package", packageName)
	engine.Set("gen.go.out", dir)
	engine.Set("queries", queryFile)

	settings := engine.AllSettings()
	delete(settings, "source")

	result := viper.New()
	result.Set("version", viper.GetString("version"))
	result.Set("sql", []interface{}{settings})

	bs, err := yaml.Marshal(result.AllSettings())
	if err != nil {
		return errors.Wrap(err, "marshal sqlc config")
	}
	if err := os.WriteFile(generatedConfig, bs, 0o644); err != nil {
		return errors.Wrap(err, "write sqlc config")
	}
	return nil
}

func runSqlc() error {
	out, err := exec.Command("sqlc", "generate", "--file", generatedConfig).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "sqlc generate: %s", string(out))
	}
	return nil
}

func main() {
	viper.SetConfigName(".sqlc.base")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("read base config: %w", err))
	}

	patterns := viper.GetStringSlice("sql.0.source")
	if len(patterns) == 0 {
		panic("no sql.0.source in .sqlc.base.yaml")
	}

	var files []string
	for _, pattern := range patterns {
		matched, err := filepath.Glob(pattern)
		if err != nil {
			panic(fmt.Errorf("glob %s: %w", pattern, err))
		}
		files = append(files, matched...)
	}

	engine := viper.Sub("sql.0")
	engine.Set("schema", viper.GetString("sql.0.schema"))

	for _, file := range files {
		if err := buildConfig(engine, file); err != nil {
			panic(err)
		}
		if err := runSqlc(); err != nil {
			panic(err)
		}
		fmt.Printf("%s done\n", file)
	}
	_ = os.Remove(generatedConfig)
}
