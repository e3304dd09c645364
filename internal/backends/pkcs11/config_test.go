package pkcs11

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU_Config_Validate(t *testing.T) {
	slot := uint(0)
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"[Unit] Config: token label", Config{Lib: "/lib.so", Token: "t"}, ""},
		{"[Unit] Config: serial", Config{Lib: "/lib.so", TokenSerial: "42"}, ""},
		{"[Unit] Config: slot", Config{Lib: "/lib.so", Slot: &slot}, ""},
		{"[Unit] Config: missing lib", Config{Token: "t"}, "no library"},
		{"[Unit] Config: no token selector", Config{Lib: "/lib.so"}, "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.ErrorIs(t, Config{}.Validate(), ErrNotConfigured)
	assert.False(t, Config{}.Enabled())
}

func TestU_Config_PIN(t *testing.T) {
	pin, err := Config{}.PIN()
	require.NoError(t, err)
	assert.Empty(t, pin)

	t.Setenv("PRIMLAB_TEST_PIN", "1234")
	pin, err = Config{PinEnv: "PRIMLAB_TEST_PIN"}.PIN()
	require.NoError(t, err)
	assert.Equal(t, "1234", pin)

	_, err = Config{PinEnv: "PRIMLAB_TEST_PIN_UNSET"}.PIN()
	assert.Error(t, err)
}

func TestU_Open_NotConfigured(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
