// Package remote runs section generation on another process over a
// WebSocket.
//
// [Handler] serves a local backend.Generator; [Client] implements
// backend.Generator by forwarding requests to a Handler. Frames are
// encoded with a codec.Codec: msgpack in binary frames by default, JSON in
// text frames when the client asks for it. Requests on one connection are
// multiplexed by frame ID and may complete out of order.
package remote
