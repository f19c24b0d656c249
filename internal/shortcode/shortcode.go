// Package shortcode derives public short codes from store-assigned link ids.
//
// Codes are the positional base-62 representation of the id, so two distinct
// ids never share a code. Codes are looked up, never decoded.
package shortcode

// Alphabet is the ordered symbol set; the first symbol stands for zero.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(Alphabet))

// Encode renders id in base 62 without leading zero symbols.
func Encode(id uint64) string {
	if id == 0 {
		return Alphabet[:1]
	}

	// 11 symbols are enough for math.MaxUint64.
	var buf [11]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = Alphabet[id%base]
		id /= base
	}

	return string(buf[i:])
}

// FromID encodes a signed store id. Store ids are positive; anything else is a
// programming error upstream and yields "".
func FromID(id int64) string {
	if id <= 0 {
		return ""
	}
	return Encode(uint64(id))
}

// reserved holds single-segment paths the HTTP router serves itself; a link
// under one of them could never be redirected to.
var reserved = map[string]struct{}{
	"ping":    {},
	"info":    {},
	"shorten": {},
}

// Reserved reports whether code is shadowed by a fixed route.
func Reserved(code string) bool {
	_, ok := reserved[code]
	return ok
}
