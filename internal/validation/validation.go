// Package validation checks request boundaries before the pipeline
// runs. The cmd and mcp surfaces call it so oversized or malformed
// input is rejected with a clear error instead of flowing downstream.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
)

// MaxQueryLength is the longest query accepted, in runes.
const MaxQueryLength = 2000

// MaxHistoryTurns caps caller-supplied conversation history.
const MaxHistoryTurns = 50

// ValidateQuery rejects empty and oversized queries. Length is counted
// in runes so Arabic input is not penalized by its UTF-8 encoding.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return qaerrors.ValidationError("query is empty", nil)
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return qaerrors.ValidationError(
			fmt.Sprintf("query is %d characters, maximum is %d", n, MaxQueryLength), nil)
	}
	return nil
}

// ValidateUserID rejects non-positive user ids.
func ValidateUserID(userID int64) error {
	if userID <= 0 {
		return qaerrors.ValidationError(
			fmt.Sprintf("user id must be positive, got %d", userID), nil)
	}
	return nil
}

// ValidateHistory bounds the number of prior turns a caller may send.
func ValidateHistory(turns int) error {
	if turns > MaxHistoryTurns {
		return qaerrors.ValidationError(
			fmt.Sprintf("history has %d turns, maximum is %d", turns, MaxHistoryTurns), nil)
	}
	return nil
}

// ValidateRequest runs all boundary checks for one ask request.
func ValidateRequest(userID int64, query string, historyTurns int) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateQuery(query); err != nil {
		return err
	}
	return ValidateHistory(historyTurns)
}
