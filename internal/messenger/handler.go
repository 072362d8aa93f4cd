package messenger

import "context"

// Handler processes one inbound command or request for a given subtype.
//
// For a command, out is nil: the handler's return code is discarded.
// For a request, out points to a nil []byte; the handler may assign
// *out to produce response bytes copied back to the caller alongside
// the returned code.
type Handler func(ctx context.Context, in []byte, out *[]byte) (code int32, err error)

// HandlerMap maps a message subtype to the Handler responsible for it.
type HandlerMap map[int32]Handler
