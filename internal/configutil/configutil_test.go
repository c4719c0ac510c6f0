package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string            `json:"name"`
	Retries int               `json:"retries"`
	Headers map[string]string `json:"headers"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("dir", "config.local.json5"), LocalPath(filepath.Join("dir", "config.json5")))
	require.Equal(t, "telemetry.local.json5", LocalPath("telemetry.json5"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](path)
	require.ErrorIs(t, err, ErrNotFound)

	err = os.WriteFile(path, []byte(`{
		// comments and trailing commas are fine
		name: "base",
		retries: 3,
		headers: { a: "1" },
	}`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	config, err := ReadConfig[testConfig](path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, testConfig{Name: "base", Retries: 3, Headers: map[string]string{"a": "1"}}, config)

	err = os.WriteFile(LocalPath(path), []byte(`{ retries: 5, headers: { b: "2" } }`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	config, err = ReadConfig[testConfig](path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "base", config.Name)
	require.Equal(t, 5, config.Retries)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, config.Headers)

	err = os.WriteFile(path, []byte(`{ name: `), 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ReadConfig[testConfig](path)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	err := os.MkdirAll(nested, 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(root, "found.json5"), []byte(`{ name: "root" }`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	err = os.Chdir(nested)
	if err != nil {
		t.Fatal(err)
	}

	config, err := ReadRecursively[testConfig]("found.json5")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "root", config.Name)

	_, err = ReadRecursively[testConfig]("pricetrack-missing-config.json5")
	require.ErrorIs(t, err, ErrNotFound)
}
