package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDbusConn struct {
	closed       bool
	props        map[string]interface{}
	propsErr     error
	restartErr   error
	restartCh    chan<- string
	restartCalls int
}

func (f *fakeDbusConn) Close() { f.closed = true }

func (f *fakeDbusConn) GetUnitProperties(unit string) (map[string]interface{}, error) {
	return f.props, f.propsErr
}

func (f *fakeDbusConn) RestartUnit(name string, mode string, ch chan<- string) (int, error) {
	f.restartCalls++
	if f.restartErr != nil {
		return 0, f.restartErr
	}
	ch <- "done"
	return 1, nil
}

func withFakeConn(t *testing.T, fake *fakeDbusConn) func() {
	t.Helper()
	prev := newDbusConnectionFunc
	newDbusConnectionFunc = func() (dbusConnInterface, error) { return fake, nil }
	return func() { newDbusConnectionFunc = prev }
}

func TestOnTransportUnhealthyRestartsUnit(t *testing.T) {
	fake := &fakeDbusConn{}
	defer withFakeConn(t, fake)()

	m, err := New(Config{SystemdUnit: "polkadot.service"})
	assert.NoError(t, err, "manager should construct")

	err = m.OnTransportUnhealthy(context.Background())
	assert.NoError(t, err, "restart should succeed")
	assert.Equal(t, 1, fake.restartCalls, "exactly one restart should be issued")
	assert.Equal(t, 1, m.RestartCount(), "restart count should increment")
}

func TestOnTransportUnhealthyRespectsCooldown(t *testing.T) {
	fake := &fakeDbusConn{}
	defer withFakeConn(t, fake)()

	m, err := New(Config{SystemdUnit: "polkadot.service", RestartCooldown: time.Hour})
	assert.NoError(t, err, "manager should construct")

	assert.NoError(t, m.OnTransportUnhealthy(context.Background()), "first restart should succeed")
	err = m.OnTransportUnhealthy(context.Background())
	assert.Error(t, err, "second restart within cooldown should be rejected")
	assert.Equal(t, 1, fake.restartCalls, "cooldown should prevent a second dbus call")
}

func TestOnTransportUnhealthyPropagatesRestartError(t *testing.T) {
	fake := &fakeDbusConn{restartErr: assert.AnError}
	defer withFakeConn(t, fake)()

	m, err := New(Config{SystemdUnit: "polkadot.service"})
	assert.NoError(t, err, "manager should construct")

	err = m.OnTransportUnhealthy(context.Background())
	assert.Error(t, err, "restart error should propagate")
	assert.Equal(t, 0, m.RestartCount(), "restart count should not increment on failure")
}

func TestActiveStateReadsProperty(t *testing.T) {
	fake := &fakeDbusConn{props: map[string]interface{}{"ActiveState": "active"}}
	defer withFakeConn(t, fake)()

	m, err := New(Config{SystemdUnit: "polkadot.service"})
	assert.NoError(t, err, "manager should construct")

	state, err := m.ActiveState(context.Background())
	assert.NoError(t, err, "active state lookup should succeed")
	assert.Equal(t, "active", state, "should report the unit's active state")
}

func TestNewRequiresSystemdUnit(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "empty SystemdUnit should be rejected")
}
