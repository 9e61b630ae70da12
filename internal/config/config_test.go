package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizjudge/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Prefix string
	}

	Judge struct {
		PythonCommand string
		PythonTimeout time.Duration
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Prefix = "quizjudge"
	c.Judge.PythonTimeout = 5 * time.Second
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		file   string
		env    map[string]string
		assert func(t *testing.T, c testConfig)
	}{
		"should keep defaults without a file": {
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, defaults(), c)
			},
		},

		"should override defaults from the file": {
			file: `
http:
  port: 8081
redis:
  addrs: ["localhost:6379"]
judge:
  pythoncommand: "python3 -I {file}"
  pythontimeout: 2s
`,
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 8081, c.HTTP.Port)
				assert.Equal(t, []string{"localhost:6379"}, c.Redis.Addrs)
				assert.Equal(t, "quizjudge", c.Redis.Prefix, "keys missing from the file keep their default")
				assert.Equal(t, "python3 -I {file}", c.Judge.PythonCommand)
				assert.Equal(t, 2*time.Second, c.Judge.PythonTimeout)
			},
		},

		"should let the environment win over the file": {
			file: "http:\n  port: 8081\n",
			env: map[string]string{
				"QUIZJUDGE_HTTP_PORT":           "9000",
				"QUIZJUDGE_JUDGE_PYTHONTIMEOUT": "750ms",
			},
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 9000, c.HTTP.Port)
				assert.Equal(t, 750*time.Millisecond, c.Judge.PythonTimeout)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var file string
			if tt.file != "" {
				file = writeFile(t, tt.file)
			}

			c := defaults()
			require.NoError(t, config.Load(file, &c))
			tt.assert(t, c)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c)
	require.Error(t, err)
}
