package conf

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	const key = "DCOHORT_CONF_TEST_GET"

	// Unknown keys resolve to the empty string
	assert.Equal(t, "", GetEnv(key))

	// Values in the process environment are visible through conf
	os.Setenv(key, "somevalue")
	defer os.Unsetenv(key)
	assert.Equal(t, "somevalue", GetEnv(key))
}

func TestSetEnv(t *testing.T) {
	const key = "DCOHORT_CONF_TEST_SET"

	err := SetEnv(t, key, "set-by-test")
	assert.NoError(t, err)
	assert.Equal(t, "set-by-test", GetEnv(key))

	assert.NoError(t, UnsetEnv(t, key))
}

func TestUnsetEnv(t *testing.T) {
	const key = "DCOHORT_CONF_TEST_UNSET"

	assert.NoError(t, SetEnv(t, key, "transient"))
	assert.NoError(t, UnsetEnv(t, key))
	assert.Equal(t, "", GetEnv(key))

	// The environment copy must be gone as well
	_, exists := os.LookupEnv(key)
	assert.False(t, exists)
}

func TestLookupEnv(t *testing.T) {
	const key = "DCOHORT_CONF_TEST_LOOKUP"

	_, found := LookupEnv(key)
	assert.False(t, found)

	os.Setenv(key, "present")
	defer os.Unsetenv(key)
	v, found := LookupEnv(key)
	assert.True(t, found)
	assert.Equal(t, "present", v)
}

func Test_findEnv(t *testing.T) {
	dir := t.TempDir()
	found, loc := findEnv([]string{dir, "/nonexistent/path"})
	assert.False(t, found)
	assert.Equal(t, "", loc)

	if err := os.WriteFile(dir+"/local.env", []byte("DCOHORT_LOG=\n"), 0600); err != nil {
		t.Fatal(err)
	}
	found, loc = findEnv([]string{"/nonexistent/path", dir})
	assert.True(t, found)
	assert.Equal(t, dir, loc)
}
