// Package hyperloop defines the public API for the Hyperloop RPC network.
//
// A Hyperloop network is a set of client processes connected to a central
// hub over persistent duplex socket connections. Any client can register
// named functions with the hub, and call functions registered by other
// clients; the hub routes each call to the owning client and routes the
// eventual return value back to the requester. The hub owns no business
// logic itself.
//
// This package contains the types shared by requesters and providers. The
// websocket client implementation is in the ws sub-package, the hub broker
// in the hub sub-package, and the TTL-governed result cache in the cache
// sub-package.
package hyperloop
