// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "time"

// Config holds the tunables the wire format requires to be compile-time
// or configuration parameters, never per-call arguments. Bind it to a
// *pflag.FlagSet with cfgstruct.Bind.
type Config struct {
	// K is the maximum number of contacts a KBucket holds.
	K int `default:"20" help:"maximum contacts per k-bucket"`

	// A is the lookup's concurrent-query width. The reference
	// implementation sets A = K; this default instead uses the
	// classical A = 3, which preserves the lookup properties while
	// issuing far fewer RPCs per lookup round.
	A int `default:"3" help:"concurrent queries per lookup round"`

	// BVal is the splitting-prefix stride: along branches that do not
	// own the local id, a full bucket may only split when its depth is
	// not a multiple of BVal.
	BVal int `default:"5" help:"bucket splitting-prefix stride"`

	// RequestTimeout bounds how long an outbound RPC waits for a
	// response before failing with Timeout.
	RequestTimeout time.Duration `default:"5s" help:"per-rpc response deadline"`

	// BucketRefreshInterval is the publish cutoff: a STORE is
	// broadcast directly to a target bucket's known contacts only if
	// the bucket was touched within this interval, else a fresh
	// FIND_NODE lookup seeds the contact list. The reference source
	// uses an effectively-infinite constant; production deployments
	// must choose a value proportional to churn and periodically
	// refresh stale buckets (see DHT.RefreshStaleBuckets).
	BucketRefreshInterval time.Duration `default:"1h" help:"bucket freshness window for publish and refresh"`
}

// DefaultConfig returns the Config with every field at its documented
// default, for use without a flag set (tests, embedding).
func DefaultConfig() Config {
	return Config{
		K:                     20,
		A:                     3,
		BVal:                  5,
		RequestTimeout:        5 * time.Second,
		BucketRefreshInterval: time.Hour,
	}
}
