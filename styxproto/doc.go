// Package styxproto provides low-level routines for parsing
// and producing 9P2000 messages.
//
// The styxproto package is to be used for making higher-level
// 9P2000 libraries. The parsing routines within make very few
// assumptions or decisions, so that it may be used for a wide
// variety of higher-level packages.
//
// When decoding messages, the styxproto package bounds memory usage per connection:
// each message is read whole into a buffer no larger than the Decoder's
// MaxSize. Messages are not unmarshalled into structures; their fields
// are parsed on demand from the raw bytes.
package styxproto
