package engine

import (
	"regexp"
	"strings"
)

// Invoice references in ticket text arrive in many shapes: "INV-1003",
// "inv 1003", "invoice #1003", or a bare "1003" right after the word
// "invoice". The heuristics here are approximate; callers must treat
// every candidate as unverified until the ledger confirms it.
var (
	prefixedRefPattern = regexp.MustCompile(`(?i)\binv[\s_-]*#?\s*(\d+)\b`)
	implicitRefPattern = regexp.MustCompile(`(?i)\binvoice\s*(?:number|no\.?|#)?\s*:?\s*(\d+)\b`)
)

// ExtractInvoiceRefs pulls invoice-number candidates out of free text
// and returns them in canonical "INV-<n>" form, first occurrence first,
// deduplicated.
func ExtractInvoiceRefs(texts ...string) []string {
	var refs []string
	seen := make(map[string]struct{})

	add := func(digits string) {
		digits = strings.TrimLeft(digits, "0")
		if digits == "" {
			digits = "0"
		}
		ref := "INV-" + digits
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	for _, text := range texts {
		for _, match := range prefixedRefPattern.FindAllStringSubmatch(text, -1) {
			add(match[1])
		}
		for _, match := range implicitRefPattern.FindAllStringSubmatch(text, -1) {
			add(match[1])
		}
	}
	return refs
}

// NormalizeInvoiceNumber maps a single reference to canonical form, or
// "" when the input does not look like an invoice number at all.
func NormalizeInvoiceNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if match := prefixedRefPattern.FindStringSubmatch(s); match != nil {
		digits := strings.TrimLeft(match[1], "0")
		if digits == "" {
			digits = "0"
		}
		return "INV-" + digits
	}
	if allDigits(s) {
		digits := strings.TrimLeft(s, "0")
		if digits == "" {
			digits = "0"
		}
		return "INV-" + digits
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
