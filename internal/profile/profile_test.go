package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestParseSparseCSV(t *testing.T) {
	t.Parallel()

	data := `profile,channel,order,min,max
saturation-point,hue,0,0.1,0.3
saturation-point,value,1,,-0.01
slow-drift,saturation,2,0.0,
`
	profiles, err := parseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	sat := profiles["saturation-point"]
	require.Len(t, sat.Conditions, 2)

	hue := sat.Conditions[0]
	assert.Equal(t, ChannelHue, hue.Channel)
	assert.Equal(t, 0, hue.Order)
	require.NotNil(t, hue.Min)
	require.NotNil(t, hue.Max)
	assert.Equal(t, 0.1, *hue.Min)
	assert.Equal(t, 0.3, *hue.Max)

	val := sat.Conditions[1]
	assert.Equal(t, ChannelValue, val.Channel)
	assert.Equal(t, 1, val.Order)
	assert.Nil(t, val.Min, "empty cell must mean unconstrained, not zero")
	require.NotNil(t, val.Max)
	assert.Equal(t, -0.01, *val.Max)

	drift := profiles["slow-drift"]
	require.Len(t, drift.Conditions, 1)
	assert.Nil(t, drift.Conditions[0].Max)
}

func TestParseRejectsBadRows(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown channel": "profile,channel,order,min,max\np,brightness,0,,\n",
		"bad order":       "profile,channel,order,min,max\np,hue,3,,\n",
		"empty name":      "profile,channel,order,min,max\n,hue,0,,\n",
		"bad bound":       "profile,channel,order,min,max\np,hue,0,abc,\n",
		"inverted bounds": "profile,channel,order,min,max\np,hue,0,0.5,0.1\n",
		"missing column":  "name,channel,order\np,hue,0\n",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseCSV(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestManagerLoadCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profiles.csv")
	data := `profile,channel,order,min,max
a,hue,0,0.1,0.3
b,value,2,,0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	m := NewManager(testLogger())
	require.NoError(t, m.LoadCSV(path))

	assert.Equal(t, []string{"a", "b"}, m.Names())

	p, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", p.Name)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManagerLoadMissingFile(t *testing.T) {
	t.Parallel()

	m := NewManager(testLogger())
	assert.Error(t, m.LoadCSV(filepath.Join(t.TempDir(), "nope.csv")))
}
