//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePartyID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParsePartyID(f *testing.F) {
	f.Add("")
	f.Add("bank-of-taipei")
	f.Add("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	f.Add("'; DROP TABLE parties;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePartyID(input)

		if err == nil {
			roundTrip, err2 := ParsePartyID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseEnvelopeID checks that accepted envelope ids are canonical.
func FuzzParseEnvelopeID(f *testing.F) {
	f.Add("0xABABABABABABABABABABABABABABABABABABABABABABABABABABABABABABABAB")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseEnvelopeID(input)
		if err != nil {
			return
		}
		again, err := ParseEnvelopeID(string(id))
		if err != nil || again != id {
			t.Error("envelope id is not canonical after parsing")
		}
	})
}
