package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInvoiceRefs(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"canonical", "Payment status of INV-5 please", []string{"INV-5"}},
		{"lowercase", "what about inv-1003?", []string{"INV-1003"}},
		{"spaced", "copy of INV 77", []string{"INV-77"}},
		{"underscore", "see INV_9 attached", []string{"INV-9"}},
		{"hash", "ref inv #12", []string{"INV-12"}},
		{"invoice word", "invoice 450 is overdue", []string{"INV-450"}},
		{"invoice number", "invoice number 88", []string{"INV-88"}},
		{"invoice no", "invoice no. 91 missing", []string{"INV-91"}},
		{"leading zeros", "INV-0042 on hold", []string{"INV-42"}},
		{"multiple", "compare INV-1 with invoice 2", []string{"INV-1", "INV-2"}},
		{"duplicates", "INV-5 and inv 5 again", []string{"INV-5"}},
		{"none", "please reset my password", nil},
		{"word boundary", "INVENTORY-99 is not an invoice ref", nil},
		{"empty", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractInvoiceRefs(tc.text))
		})
	}
}

func TestExtractInvoiceRefsMultipleSources(t *testing.T) {
	refs := ExtractInvoiceRefs("ticket about INV-1", "note mentions invoice 2")
	assert.Equal(t, []string{"INV-1", "INV-2"}, refs)
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"INV-5", "INV-5"},
		{"inv 5", "INV-5"},
		{"inv_0042", "INV-42"},
		{"1003", "INV-1003"},
		{"  INV-7  ", "INV-7"},
		{"0", "INV-0"},
		{"garbage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeInvoiceNumber(tc.in), "input %q", tc.in)
	}
}
