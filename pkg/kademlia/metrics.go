// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "gopkg.in/spacemonkeygo/monkit.v2"

var mon = monkit.Package()

// rpcOutcome buckets an RPC result for the outcome counters below.
type rpcOutcome int

const (
	outcomeSuccess rpcOutcome = iota
	outcomeTimeout
	outcomeIDMismatched
	outcomePeerError
	outcomeProtocolError
)

var (
	rpcOutcomeSuccess       = mon.Counter("rpc_outcome_success")
	rpcOutcomeTimeout       = mon.Counter("rpc_outcome_timeout")
	rpcOutcomeIDMismatched  = mon.Counter("rpc_outcome_id_mismatched")
	rpcOutcomePeerError     = mon.Counter("rpc_outcome_peer_error")
	rpcOutcomeProtocolError = mon.Counter("rpc_outcome_protocol_error")
)

// classifyRPCError maps an RPC error, as returned by a ProtocolClient
// method, onto the outcome taxonomy in errors.go.
func classifyRPCError(err error) rpcOutcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case Timeout.Has(err):
		return outcomeTimeout
	case IdMismatched.Has(err):
		return outcomeIDMismatched
	case PeerError.Has(err):
		return outcomePeerError
	default:
		return outcomeProtocolError
	}
}

// recordRPCOutcome increments the counter matching err's classification.
func recordRPCOutcome(err error) {
	switch classifyRPCError(err) {
	case outcomeSuccess:
		rpcOutcomeSuccess.Inc(1)
	case outcomeTimeout:
		rpcOutcomeTimeout.Inc(1)
	case outcomeIDMismatched:
		rpcOutcomeIDMismatched.Inc(1)
	case outcomePeerError:
		rpcOutcomePeerError.Inc(1)
	default:
		rpcOutcomeProtocolError.Inc(1)
	}
}
