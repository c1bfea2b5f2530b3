// Package faults classifies the error kinds the harness can encounter,
// per the error handling design: configuration errors are fatal at
// startup, transport errors are logged (a failed peer connection is
// dropped and redialed on the next broadcast; a replica whose control
// stream fails is marked done), and malformed messages are silently
// discarded. The
// protocol engines never see or return any of these; their contract is
// total over well-formed messages.
package faults

import "errors"

// ErrConfiguration indicates an infeasible parameter set (e.g. n <= 2f
// for Ben-Or, or an unknown algorithm selector). Wrap with fmt.Errorf
// and %w to preserve this sentinel through errors.Is.
var ErrConfiguration = errors.New("faults: configuration error")

// ErrPeerTransport indicates a broken or reset connection to a peer
// replica. The replica logs it and drops that connection; the next
// broadcast redials the peer, so a failed peer is not excluded for the
// rest of the run. The engine tolerates missing peers as long as the
// n-f threshold remains reachable.
var ErrPeerTransport = errors.New("faults: peer transport error")

// ErrControlTransport indicates a broken or reset controller-to-replica
// control stream, observed from either side: the controller marks the
// affected replica globally done and proceeds, while the replica
// treats itself as permanently down.
var ErrControlTransport = errors.New("faults: control transport error")

// ErrMalformedMessage indicates a frame that failed to parse, or that
// lacked a required field (e.g. "id"). Callers should drop the frame
// and continue; Byzantine senders may legally emit garbage.
var ErrMalformedMessage = errors.New("faults: malformed message")
