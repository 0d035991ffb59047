package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "--config", "-a"}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate value", []string{"-c", "conf.json", "-x", "1"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"--config=alt.json", "-x"}, []string{"--config=alt.json"}},
		{"equals value may look like a flag", []string{"--config=--weird.json"}, []string{"--config=--weird.json"}},
		{"order preserved across forms", []string{"-a", ":8080", "--config=a.json", "-c", "b.json"},
			[]string{"-a", ":8080", "--config=a.json", "-c", "b.json"}},
		{"trailing flag without value", []string{"-c"}, []string{"-c"}},
		{"next flag is not taken as value", []string{"-c", "-a", ":1"}, []string{"-c", "-a", ":1"}},
		{"positional and unknown dropped", []string{"serve", "-x", "1", "--y=2"}, []string{}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/short.yaml"}
		assert.Equal(t, "/path/short.yaml", ConfigFileFlag())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", "/path/long.json"}
		assert.Equal(t, "/path/long.json", ConfigFileFlag())
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		os.Args = []string{"testbin", "-x", "1", "-y", "2"}
		assert.Empty(t, ConfigFileFlag())
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/1.json", "-config", "/path/2.json"}
		assert.Equal(t, "/path/2.json", ConfigFileFlag())
	})
}

func TestEnvFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-a", ":9090", "-env-file", "/etc/authkeeper.env", "-c", "cfg.json"}
	assert.Equal(t, "/etc/authkeeper.env", EnvFileFlag())
	assert.Equal(t, "cfg.json", ConfigFileFlag())

	os.Args = []string{"testbin", "-env-file=prod.env"}
	assert.Equal(t, "prod.env", EnvFileFlag())
}
