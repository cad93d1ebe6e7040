// Package protocol implements parsing and serialising the frames that the
// GoXLR Utility daemon exchanges with its clients over the websocket at
// /api/websocket.
//
//   - Frame: one message on the socket. Every frame is a single JSON object
//     sent as one websocket text message.
//   - ID: the request identifier. The client picks it, the daemon echoes it
//     back on the reply so the client can match the two up.
//   - Patch: a batch of JSON patch operations the daemon pushes whenever its
//     state changes. Nobody asked for these.
//
// === General Syntax
//
//	> {"id": <uint64>, "data": <payload>}
//	< {"id": <uint64>, "data": <reply>}
//
// The payload is whatever command object the caller built, we never look
// inside it. The reply is one of
//
//   - "Ok": the command succeeded and has nothing to say
//   - {"Status": {...}}: a full snapshot of the daemon state
//   - {"Patch": [...]}: state changes, see below
//   - {"Error": "<message>"}: the command failed, message is human readable
//
// Anything else is passed through untouched as an opaque result so newer
// daemons don't break older clients.
//
// Replies can arrive in any order and can interleave with pushed patches, but
// a single frame is always atomic.
//
// === Reserved IDs
//
//   - 0 is used for keepalives. The client sends {"id":0,"data":"Ping"}
//     every few seconds and the daemon acks it on the same id.
//   - 2^64-1 is used for patches that are pushed without being requested.
//
// === Patches
//
//	< {"id": 18446744073709551615, "data": {"Patch": [
//	    {"op": "replace", "path": "/mixers/S201/levels/volumes/Mic", "value": 200}
//	  ]}}
//
// Each operation uses the RFC 6902 vocabulary: add, remove, replace, copy, move
// and test. The from field is only present for copy and move, value is absent
// for remove.
package protocol
