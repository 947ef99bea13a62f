// Package tracing provides tracing of sent and received 9P
// messages.
package tracing

import (
	"io"

	"aqwari.net/net/ufs9p/styxproto"
)

// A Func can be used to access 9P messages as they
// pass through a styxproto.Encoder or a styxproto.Decoder.
// Messages are not copied; a Func should not modify
// msg, and msg should not be accessed after the Func
// returns.
type Func func(msg styxproto.Msg)

const kilobyte = 1 << 10

// Decoder creates a new styxproto.Decoder that traces messages
// received on r.
func Decoder(r io.Reader, fn Func) *styxproto.Decoder {
	rd, wr := io.Pipe()
	decoderInput := styxproto.NewDecoderSize(r, 8*kilobyte)
	decoderTrace := styxproto.NewDecoderSize(rd, 8*kilobyte)
	go func() {
		for decoderInput.Next() {
			fn(decoderInput.Msg())
			wr.Write(styxproto.Bytes(decoderInput.Msg()))
		}
		wr.Close()
	}()
	return decoderTrace
}

// Encoder creates a new styxproto.Encoder that traces messages
// before writing them to w.
func Encoder(w io.Writer, fn Func) *styxproto.Encoder {
	rd, wr := io.Pipe()
	encoder := styxproto.NewEncoder(wr)
	decoder := styxproto.NewDecoderSize(rd, 8*kilobyte)
	go func() {
		for decoder.Next() {
			fn(decoder.Msg())
			w.Write(styxproto.Bytes(decoder.Msg()))
		}
	}()
	return encoder
}
