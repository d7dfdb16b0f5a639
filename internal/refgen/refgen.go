package refgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Generator issues voucher and invoice identifiers for confirmed bookings.
// Identifiers are random; uniqueness is enforced by the ledger's unique
// constraints, with regenerate-and-retry on collision.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// VoucherCode returns an identifier of the form VCH-XXXX-XXXX.
func (g *Generator) VoucherCode() string {
	return fmt.Sprintf("VCH-%04X-%04X", randUint16(), randUint16())
}

// InvoiceID returns an identifier of the form INV_nnnn with nnnn in [1000, 9999].
func (g *Generator) InvoiceID() string {
	return fmt.Sprintf("INV_%d", 1000+int(randUint16())%9000)
}

func randUint16() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("refgen: rand.Read: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}
