package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/errors"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LDEBUG3, ParseLevel("debug3"))
	assert.Equal(t, LDEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, LWARNING, ParseLevel("warning"))
	assert.Equal(t, LUNKNOWN, ParseLevel("verbose"))
}

func TestModuleLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf, "", 0)
	require.NoError(t, SetLevel(LINFO))

	m := NewModuleLogger("testing")
	assert.Same(t, m, NewModuleLogger("testing"))
	assert.Contains(t, Modules(), "testing")

	t.Run("Filtered", func(t *testing.T) {
		buf.Reset()
		m.Debugf("hidden %d", 1)
		assert.Empty(t, buf.String())
	})

	t.Run("Written", func(t *testing.T) {
		buf.Reset()
		m.Infof("visible %d", 2)
		assert.Contains(t, buf.String(), "[testing] visible 2")
	})

	t.Run("LevelChange", func(t *testing.T) {
		require.NoError(t, SetLevel(LDEBUG))
		defer func() { _ = SetLevel(LINFO) }()

		buf.Reset()
		m.Debugf("now visible")
		assert.Contains(t, buf.String(), "now visible")
	})

	t.Run("ModuleLevel", func(t *testing.T) {
		SetModuleLevel("testing", LDEBUG3)
		defer SetModuleLevel("testing", LUNKNOWN)

		buf.Reset()
		m.Debug3f("deep %s", "step")
		Debugf("global hidden")
		assert.Contains(t, buf.String(), "[testing] deep step")
		assert.NotContains(t, buf.String(), "global hidden")
		assert.True(t, m.IsAllowed(LDEBUG2))
	})

	t.Run("ModuleBeforeRegistration", func(t *testing.T) {
		SetModuleLevel("later", LERROR)
		later := NewModuleLogger("later")
		assert.Equal(t, LERROR, later.Level())

		buf.Reset()
		later.Warningf("hidden")
		later.Errorf("failed")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "[later] failed")
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		err := SetLevel(LUNKNOWN)
		assert.True(t, errors.Is(err, ErrUnknownLevel))
		assert.Equal(t, LINFO, Level())
	})
}
