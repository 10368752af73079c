// Package discovery implements get_socket_path (spec.md §6): the
// system-bus call that negotiates protocol version and yields the
// per-VM transport path. The real service lives in the RDP server
// process; this package is only the client-side call.
//
// Grounded on the godbus/dbus/v5 usage pattern in the helixml-helix
// desktop package (other_examples/): a *dbus.Conn obtained once,
// .Object(busName, path) to get a BusObject, then .Call(method, flags,
// args...).Store(&out) to invoke and unmarshal a reply.
package discovery

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/rdpmux/rdpmux/internal/nlog"
)

// ProtocolVersion is the wire protocol version this library speaks
// (spec.md §6: "RDPMUX_PROTOCOL_VERSION = 2").
const ProtocolVersion = 2

const negotiateMethod = "org.rdpmux.Registrar.GetSocketPath"

// GetSocketPath calls busName/objectPath's GetSocketPath method,
// passing vmID, and returns the per-VM transport path once the
// responder's advertised protocol versions include ProtocolVersion.
//
// The remote method is expected to return (supportedVersions []int32,
// socketPath string); spec.md §6: "receives a list of supported
// protocol versions, checks that version 2 appears, registers this VM
// id, and returns the per-VM transport path."
func GetSocketPath(ctx context.Context, busName, objectPath, vmID string) (string, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "discovery: connect system bus")
	}
	defer conn.Close()

	obj := conn.Object(busName, dbus.ObjectPath(objectPath))

	var supported []int32
	var socketPath string
	call := obj.CallWithContext(ctx, negotiateMethod, 0, vmID)
	if call.Err != nil {
		return "", errors.Wrapf(call.Err, "discovery: call %s", negotiateMethod)
	}
	if err := call.Store(&supported, &socketPath); err != nil {
		return "", errors.Wrap(err, "discovery: unmarshal reply")
	}

	if !hasVersion(supported, ProtocolVersion) {
		return "", errors.Errorf("discovery: peer does not support protocol version %d (supports %v)", ProtocolVersion, supported)
	}

	nlog.Infof("discovery: registered vm %s, socket path %s", vmID, socketPath)
	return socketPath, nil
}

func hasVersion(versions []int32, want int32) bool {
	for _, v := range versions {
		if v == want {
			return true
		}
	}
	return false
}
