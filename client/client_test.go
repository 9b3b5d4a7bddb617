package client

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlockstep/netsync/port"
	"github.com/openlockstep/netsync/transport"
	"github.com/openlockstep/netsync/wire"
)

type intCodec struct{}

func (intCodec) Encode(buttons int, state *wire.KeyState) error {
	state.XAxis = int32(buttons)
	return nil
}

func (intCodec) Decode(state wire.KeyState) (int, error) {
	return int(state.XAxis), nil
}

func newTestConn(t *testing.T) *transport.Conn {
	t.Helper()
	a, b := net.Pipe()
	conn := transport.Dial(a)
	other := transport.Accept(b)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = other.Close()
	})
	return conn
}

func TestPlugControllersRejectsBadPortCounts(t *testing.T) {
	cl := New[int](newTestConn(t), intCodec{}, nil)

	_, err := cl.PlugControllers(1, "hash", 0, nil)
	assert.Error(t, err)

	_, err = cl.PlugControllers(1, "hash", 0, []port.Port{port.P1, port.P2, port.P3, port.P4, port.P1})
	assert.Error(t, err)
}

func TestMakeEventStreamHandlerNilBeforePlugControllers(t *testing.T) {
	cl := New[int](newTestConn(t), intCodec{}, nil)
	assert.Nil(t, cl.MakeEventStreamHandler())
}

func TestAccessorsDefaultBeforePlugControllers(t *testing.T) {
	cl := New[int](newTestConn(t), intCodec{}, nil)
	require.Equal(t, int32(0), cl.DelayFrames())
	require.Empty(t, cl.LocalPorts())
	require.NotNil(t, cl.Timings())
}
