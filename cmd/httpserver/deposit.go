package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// parseDeposit parses an address=amount pair.
func parseDeposit(s string) (interfaces.Address, uint64, error) {
	addrPart, amountPart, ok := strings.Cut(s, "=")
	if !ok {
		return interfaces.Address{}, 0, fmt.Errorf("invalid deposit %q: expected address=amount", s)
	}
	addr, err := interfaces.ParseAddress(strings.TrimSpace(addrPart))
	if err != nil {
		return interfaces.Address{}, 0, err
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(amountPart), 10, 64)
	if err != nil {
		return interfaces.Address{}, 0, fmt.Errorf("invalid deposit amount %q: %w", amountPart, err)
	}
	return addr, amount, nil
}
