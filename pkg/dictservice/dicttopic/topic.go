// SPDX-License-Identifier: AGPL-3.0-only

// Package dicttopic formats and parses the canonical identifier of a
// dataset version: "<storeName>_v<versionNumber>".
package dicttopic

import (
	"fmt"
	"strconv"
	"strings"
)

const versionSeparator = "_v"

// Format returns the canonical topic for storeName and versionNumber.
func Format(storeName string, versionNumber int) string {
	return storeName + versionSeparator + strconv.Itoa(versionNumber)
}

// Parse splits topic back into its store name and version number. It
// returns an error if topic doesn't follow the "<store>_v<n>" format.
func Parse(topic string) (storeName string, versionNumber int, err error) {
	idx := strings.LastIndex(topic, versionSeparator)
	if idx <= 0 {
		return "", 0, fmt.Errorf("dicttopic: malformed topic %q", topic)
	}

	n, err := strconv.Atoi(topic[idx+len(versionSeparator):])
	if err != nil {
		return "", 0, fmt.Errorf("dicttopic: malformed version number in topic %q: %w", topic, err)
	}

	return topic[:idx], n, nil
}
