package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/955Gmy/libnetconf/config"
	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/stream"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.Default()
	cfg.StreamsPath = t.TempDir()

	r, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOpen_CreatesDefaultStream(t *testing.T) {
	r := openTestRegistry(t)

	assert.True(t, r.IsAvailable(DefaultStream))
	s, err := r.Get(DefaultStream)
	require.NoError(t, err)
	assert.True(t, s.Replay)
	assert.Equal(t, "NETCONF Base Notifications", s.Desc)

	for _, ev := range baseEvents {
		assert.True(t, r.IsAllowed(DefaultStream, ev), ev)
	}
}

func TestNew_CreatesAndRejectsDuplicates(t *testing.T) {
	r := openTestRegistry(t)

	require.NoError(t, r.New("audit", "audit trail", false))
	assert.True(t, r.IsAvailable("audit"))

	err := r.New("audit", "again", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStreamExists))
}

func TestNew_RejectsEmptyName(t *testing.T) {
	r := openTestRegistry(t)
	assert.Error(t, r.New("", "d", true))
}

func TestGet_UnknownStream(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.Get("noSuch")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownStream))
}

func TestGet_DiscoversStreamsCreatedExternally(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StreamsPath = dir

	r, err := Open(cfg)
	require.NoError(t, err)
	defer r.Close()

	// Simulate another process creating a stream file after our scan.
	other, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, other.New("external", "made elsewhere", true))
	other.Close()

	s, err := r.Get("external")
	require.NoError(t, err)
	assert.Equal(t, "external", s.Name)
	assert.True(t, r.IsAvailable("external"))
}

func TestOpen_SkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/Xgarbage.events", []byte("X not a stream"), 0o644))

	cfg := config.Default()
	cfg.StreamsPath = dir

	r, err := Open(cfg)
	require.NoError(t, err)
	defer r.Close()

	// Only the auto-created default stream is registered.
	assert.Equal(t, []string{DefaultStream}, r.List())
}

func TestOpen_LoadsExistingStreams(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StreamsPath = dir

	first, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, first.New("audit", "audit trail", true))
	require.NoError(t, first.Allow("audit", "audit-event"))
	first.Close()

	second, err := Open(cfg)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.IsAvailable("audit"))
	assert.True(t, second.IsAllowed("audit", "audit-event"))
	s, err := second.Get("audit")
	require.NoError(t, err)
	assert.True(t, s.Replay)
	assert.Equal(t, "audit trail", s.Desc)
}

func TestAllowAndIsAllowed(t *testing.T) {
	r := openTestRegistry(t)

	assert.False(t, r.IsAllowed(DefaultStream, "custom-event"))
	require.NoError(t, r.Allow(DefaultStream, "custom-event"))
	assert.True(t, r.IsAllowed(DefaultStream, "custom-event"))
}

func TestStatusDocument(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.New("audit", "audit trail", false))

	status := r.Status()
	assert.Contains(t, status, `xmlns="urn:ietf:params:xml:ns:netmod:notification"`)
	assert.Contains(t, status, "<name>NETCONF</name>")
	assert.Contains(t, status, "<replaySupport>true</replaySupport>")
	assert.Contains(t, status, "replayLogCreationTime")
	assert.Contains(t, status, "<name>audit</name>")
	assert.Contains(t, status, "<replaySupport>false</replaySupport>")
}

func TestForEach_VisitsAllStreams(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.New("audit", "", true))

	var seen []string
	r.ForEach(func(s *stream.Stream) { seen = append(seen, s.Name) })
	assert.Equal(t, []string{DefaultStream, "audit"}, seen)
}

func TestClose_TerminatesLookups(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Close())

	assert.True(t, r.Closed())
	_, err := r.Get(DefaultStream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClosed))
}

func TestReinit_RediscoversStreams(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.New("audit", "", true))

	require.NoError(t, r.Reinit())
	assert.True(t, r.IsAvailable("audit"))
	assert.True(t, r.IsAvailable(DefaultStream))
}
